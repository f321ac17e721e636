// Package server exposes the HTTP surface: the websocket attach endpoint,
// event ingestion, health probes, and prometheus metrics.
package server
