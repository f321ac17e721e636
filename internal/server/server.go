package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pulsegate/pulsegate/internal/broadcast"
	"github.com/pulsegate/pulsegate/internal/domain"
	"github.com/pulsegate/pulsegate/internal/hub"
	"github.com/pulsegate/pulsegate/internal/platform/config"
	"github.com/pulsegate/pulsegate/internal/relay"
)

// redisPinger is the minimal surface the readiness probe needs.
type redisPinger interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

// postgresPinger is nil when the process runs without a database.
type postgresPinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	hub         *hub.Hub
	relay       *relay.Selector
	broadcaster *broadcast.Broadcaster
	strategies  map[string]domain.Strategy
	limits      *ConnectionLimits
	redisPing   redisPinger
	pgPing      postgresPinger
	startTime   time.Time
}

func NewServer(cfg *config.Config, h *hub.Hub, r *relay.Selector, b *broadcast.Broadcaster, strategies []domain.Strategy, redisPing redisPinger, pgPing postgresPinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlationMiddleware)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.InfoContext(c.Request().Context(), "Request handled",
				"method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	byName := make(map[string]domain.Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}

	srv := &Server{
		echo:        e,
		config:      cfg,
		hub:         h,
		relay:       r,
		broadcaster: b,
		strategies:  byName,
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRatePerSec,
			cfg.ConnectionBurst,
		),
		redisPing: redisPing,
		pgPing:    pgPing,
		startTime: time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
