// Package metrics defines the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay Metrics
var (
	// RelayState tracks the current relay adapter state
	// (0=unselected, 1=distributed, 2=cluster_local, 3=local_only).
	RelayState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_state",
			Help: "Current relay adapter state (0=unselected, 1=distributed, 2=cluster_local, 3=local_only)",
		},
	)

	// RelayDowngradesTotal tracks relay adapter downgrades by target state
	RelayDowngradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_downgrades_total",
			Help: "Total relay adapter downgrades by target state",
		},
		[]string{"to"},
	)

	// RelayEnvelopesPublished tracks envelopes published to the relay
	RelayEnvelopesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_envelopes_published_total",
			Help: "Total envelopes published to the relay by status",
		},
		[]string{"status"},
	)

	// RelayEnvelopesReceived tracks envelopes received from other processes
	RelayEnvelopesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_envelopes_received_total",
			Help: "Total envelopes received from the relay",
		},
	)

	// RelayDecodeErrors tracks malformed envelopes dropped on receipt
	RelayDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_decode_errors_total",
			Help: "Total malformed relay envelopes dropped",
		},
	)
)

// Broadcast Metrics
var (
	// BroadcastsTotal tracks broadcast invocations by result (processed/no_payload)
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcasts_total",
			Help: "Total broadcast invocations by result (processed/no_payload)",
		},
		[]string{"result"},
	)

	// EmissionsTotal tracks room emissions
	EmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_emissions_total",
			Help: "Total per-room emissions",
		},
	)

	// GateDecisions tracks authorization gate outcomes (admit/deny/error)
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_gate_decisions_total",
			Help: "Authorization gate outcomes (admit/deny/error)",
		},
		[]string{"decision"},
	)

	// StrategyFailures tracks room enumeration failures by strategy
	StrategyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_strategy_failures_total",
			Help: "Room enumeration failures by strategy",
		},
		[]string{"strategy"},
	)

	// PipelineFailures tracks sanitize/transform failures
	PipelineFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_pipeline_failures_total",
			Help: "Total payload pipeline failures (room emission skipped)",
		},
	)

	// RoomTimeouts tracks rooms denied because the per-room budget expired
	RoomTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_room_timeouts_total",
			Help: "Rooms denied because the per-room timeout expired",
		},
	)
)

// Hub Metrics
var (
	// HubConnectedClients tracks connected websocket clients
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	// HubActiveRooms tracks rooms with at least one member
	HubActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_rooms",
			Help: "Current number of rooms with at least one member",
		},
	)

	// HubSlowClientsEvicted tracks clients dropped for full send buffers
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Total clients evicted because their send buffer was full",
		},
	)

	// HubMessagesDelivered tracks messages written to client buffers
	HubMessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_messages_delivered_total",
			Help: "Total messages enqueued to client send buffers",
		},
	)
)

// WebSocket Metrics
var (
	// WebSocketConnectionsTotal tracks connection attempts by result
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result (accepted/rejected/unauthorized/upgrade_failed)",
		},
		[]string{"result"},
	)

	// WebSocketPingFailures tracks ping failures (client not responding)
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures (client not responding)",
		},
	)
)

// Redis Metrics
var (
	// RedisOpsTotal tracks Redis operations by operation and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query duration by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)
)
