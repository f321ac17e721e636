// Package strategy provides the subscription strategy variants shipped
// with the broadcaster: admin sessions (backed by the Redis session store)
// and API tokens (backed by Postgres). Each variant knows how to enumerate
// the rooms currently interested in an event and how to derive wire room
// names and viewer credentials.
package strategy
