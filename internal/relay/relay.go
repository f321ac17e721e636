// Package relay makes broadcasts reach every serving process. The adapter
// is selected once at startup and degrades one way under failure:
//
//	Unselected -> Distributed  -> LocalOnly   (production)
//	Unselected -> ClusterLocal -> LocalOnly   (otherwise)
//
// LocalOnly is terminal for the process lifetime. Under LocalOnly delivery
// is correct only for the current process; cross-process subscribers
// silently receive nothing. That is an accepted limitation, observable via
// logs and the relay_state gauge, never via broadcast failures.
package relay

import "context"

// State is the process-wide adapter state.
type State int

const (
	Unselected State = iota
	Distributed
	ClusterLocal
	LocalOnly
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case Distributed:
		return "distributed"
	case ClusterLocal:
		return "cluster_local"
	case LocalOnly:
		return "local_only"
	default:
		return "unknown"
	}
}

// Envelope is the cross-process message. Data holds the final wire frame;
// Rooms scopes delivery (empty means every connected client, multiple
// names mean clients in ALL of them). Origin identifies the publishing
// process so self-published envelopes are dropped on receipt.
type Envelope struct {
	Origin string   `json:"origin"`
	Event  string   `json:"event"`
	Rooms  []string `json:"rooms,omitempty"`
	Data   []byte   `json:"data"`
}

// Handler applies an envelope received from another process to the local
// connection hub.
type Handler func(env Envelope)

// Adapter is a cross-process publish mechanism.
type Adapter interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}
