package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pulsegate/pulsegate/internal/metrics"
	"github.com/pulsegate/pulsegate/internal/platform/retry"
	redisx "github.com/pulsegate/pulsegate/internal/redis"
)

const (
	relayChannel   = "pulsegate:events"
	connectTimeout = 5 * time.Second
)

// redisAdapter relays envelopes between processes through Redis Pub/Sub.
// It holds two independent connections: one publish-oriented, one
// subscribe-oriented. Both must complete setup before the adapter is
// installed. Errors after installation are logged only; go-redis owns
// reconnection of both clients.
type redisAdapter struct {
	pub     *goredis.Client
	sub     *goredis.Client
	origin  string
	handler Handler
	cancel  context.CancelFunc
}

func newRedisAdapter(ctx context.Context, redisURL, origin string, handler Handler) (*redisAdapter, error) {
	pub, err := connectRedis(ctx, redisURL)
	if err != nil {
		return nil, fmt.Errorf("publish connection: %w", err)
	}

	sub, err := connectRedis(ctx, redisURL)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("subscribe connection: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	a := &redisAdapter{pub: pub, sub: sub, origin: origin, handler: handler, cancel: cancel}

	pubsub := sub.Subscribe(loopCtx, relayChannel)
	if _, err := pubsub.Receive(loopCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		_ = pub.Close()
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", relayChannel, err)
	}

	go a.readLoop(loopCtx, pubsub)

	return a, nil
}

func connectRedis(ctx context.Context, redisURL string) (*goredis.Client, error) {
	client, err := redisx.NewClient(redisURL)
	if err != nil {
		return nil, err
	}

	policy := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Redis relay ping failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	classify := func(error) retry.Action { return retry.Retry }

	err = retry.DoVoid(ctx, policy, classify, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func (a *redisAdapter) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := a.pub.Publish(ctx, relayChannel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", relayChannel, err)
	}
	return nil
}

func (a *redisAdapter) readLoop(ctx context.Context, pubsub *goredis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				slog.Warn("Relay subscription channel closed")
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				metrics.RelayDecodeErrors.Inc()
				slog.Warn("Dropping malformed relay envelope", "error", err)
				continue
			}
			if env.Origin == a.origin {
				continue
			}
			metrics.RelayEnvelopesReceived.Inc()
			a.handler(env)
		case <-ctx.Done():
			return
		}
	}
}

func (a *redisAdapter) Close() error {
	a.cancel()
	errPub := a.pub.Close()
	errSub := a.sub.Close()
	if errPub != nil {
		return errPub
	}
	return errSub
}
