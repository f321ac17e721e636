// Package domain contains the core types of the broadcaster: events,
// schemas, rooms, subscription strategies, abilities, and the interfaces
// through which the permission evaluator and the payload-shaping services
// are consumed. It has no dependencies on infrastructure packages.
package domain
