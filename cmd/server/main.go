package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pulsegate/pulsegate/internal/ability"
	"github.com/pulsegate/pulsegate/internal/broadcast"
	"github.com/pulsegate/pulsegate/internal/database"
	"github.com/pulsegate/pulsegate/internal/domain"
	"github.com/pulsegate/pulsegate/internal/hub"
	"github.com/pulsegate/pulsegate/internal/platform/config"
	"github.com/pulsegate/pulsegate/internal/platform/logging"
	"github.com/pulsegate/pulsegate/internal/redis"
	"github.com/pulsegate/pulsegate/internal/relay"
	"github.com/pulsegate/pulsegate/internal/server"
	"github.com/pulsegate/pulsegate/internal/strategy"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// setupDB connects to Postgres when DATABASE_URL is set. Without it the
// process runs with the admin strategy only.
func setupDB(cfg *config.Config) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		slog.Info("No DATABASE_URL configured, API token strategy disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return pool
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, selector *relay.Selector) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		h.Stop()
		if err := selector.Close(); err != nil {
			slog.Error("Relay close error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	pool := setupDB(cfg)
	if pool != nil {
		defer pool.Close()
	}

	h := hub.NewHub(clock, cfg.MaxWebSocketConnections)

	selector := relay.Select(context.Background(), relay.Options{
		Production:    cfg.Production(),
		RedisURL:      cfg.RedisURL,
		ClusterSocket: cfg.ClusterSocket,
	}, func(env relay.Envelope) {
		h.Emit(env.Rooms, env.Data)
	})

	channel := broadcast.NewChannel(h, selector)

	strategies := []domain.Strategy{
		strategy.NewAdmin(redis.NewSessionStore(redisClient)),
	}
	if pool != nil {
		strategies = append(strategies, strategy.NewAPITokens(database.NewTokenRepo(pool)))
	}

	gate := broadcast.NewGate(ability.NewProvider())
	pipeline := broadcast.NewPipeline(broadcast.DefaultSanitizer(), broadcast.DefaultTransformer())
	broadcaster := broadcast.NewBroadcaster(channel, gate, pipeline, strategies, clock, cfg.RoomTimeout)

	// Pass nil explicitly to avoid a typed-nil interface in the server
	var srv *server.Server
	if pool != nil {
		srv = server.NewServer(cfg, h, selector, broadcaster, strategies, redisClient, pool)
	} else {
		srv = server.NewServer(cfg, h, selector, broadcaster, strategies, redisClient, nil)
	}

	done := runGracefulShutdown(srv, h, selector)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
