package relay

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pulsegate/pulsegate/internal/metrics"
)

// Options selects the adapter path.
type Options struct {
	// Production selects the distributed (Redis) attempt; otherwise the
	// same-host cluster attempt is made.
	Production bool
	// RedisURL is the distributed relay store connection string.
	RedisURL string
	// ClusterSocket is the unix socket path for cluster-local mode.
	ClusterSocket string
}

type installed struct {
	state   State
	adapter Adapter
}

// Selector owns the adapter lifecycle. Selection is attempted exactly once,
// at construction; any failure degrades to LocalOnly and never propagates.
// Readers always observe a fully constructed adapter through the atomic
// handle. LocalOnly is never retried.
type Selector struct {
	origin  string
	current atomic.Pointer[installed]
}

// Select builds a Selector and wires the chosen adapter. handler receives
// envelopes published by other processes.
func Select(ctx context.Context, opts Options, handler Handler) *Selector {
	s := &Selector{origin: uuid.NewString()}

	if opts.Production {
		adapter, err := newRedisAdapter(ctx, opts.RedisURL, s.origin, handler)
		if err != nil {
			slog.Error("Distributed relay unavailable, falling back to local-only delivery",
				"redis_url", opts.RedisURL, "error", err)
			s.install(LocalOnly, localAdapter{})
			metrics.RelayDowngradesTotal.WithLabelValues(LocalOnly.String()).Inc()
			return s
		}
		slog.Info("Distributed relay selected", "origin", s.origin)
		s.install(Distributed, adapter)
		return s
	}

	adapter, err := newClusterAdapter(opts.ClusterSocket, s.origin, handler)
	if err != nil {
		slog.Warn("Cluster relay unavailable, falling back to local-only delivery",
			"socket", opts.ClusterSocket, "error", err)
		s.install(LocalOnly, localAdapter{})
		metrics.RelayDowngradesTotal.WithLabelValues(LocalOnly.String()).Inc()
		return s
	}
	slog.Info("Cluster relay selected", "socket", opts.ClusterSocket, "origin", s.origin)
	s.install(ClusterLocal, adapter)
	return s
}

func (s *Selector) install(state State, adapter Adapter) {
	s.current.Store(&installed{state: state, adapter: adapter})
	metrics.RelayState.Set(float64(state))
}

// State returns the current adapter state.
func (s *Selector) State() State {
	cur := s.current.Load()
	if cur == nil {
		return Unselected
	}
	return cur.state
}

// Origin identifies this process in published envelopes.
func (s *Selector) Origin() string { return s.origin }

// Publish relays an envelope to other processes. Failures are logged and
// counted, never returned: delivery past the local process is best-effort
// by contract.
func (s *Selector) Publish(ctx context.Context, env Envelope) {
	cur := s.current.Load()
	if cur == nil {
		return
	}
	env.Origin = s.origin
	if err := cur.adapter.Publish(ctx, env); err != nil {
		metrics.RelayEnvelopesPublished.WithLabelValues("error").Inc()
		slog.Error("Relay publish failed", "event", env.Event, "state", cur.state.String(), "error", err)
		return
	}
	metrics.RelayEnvelopesPublished.WithLabelValues("success").Inc()
}

// Close shuts the installed adapter down.
func (s *Selector) Close() error {
	cur := s.current.Load()
	if cur == nil {
		return nil
	}
	return cur.adapter.Close()
}
