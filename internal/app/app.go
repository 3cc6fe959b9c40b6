package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/liveroom/internal/controller"
	"github.com/sharetube/liveroom/internal/repository/connection/inmemory"
	"github.com/sharetube/liveroom/internal/service/relay"
	"github.com/sharetube/liveroom/pkg/ctxlogger"
	"github.com/sharetube/liveroom/pkg/redisclient"
	"github.com/sharetube/liveroom/pkg/validator"
)

const writeTimeout = 5 * time.Second

type AppConfig struct {
	Host             string        `json:"host" validate:"required"`
	Port             int           `json:"port" validate:"gte=1,lte=65535"`
	LogLevel         string        `json:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
	ConnectRateLimit int           `json:"connect_rate_limit" validate:"gte=0"`
	KeepAlive        time.Duration `json:"keepalive" validate:"gte=0"`
	RedisEnabled     bool          `json:"redis_enabled"`
	RedisPort        int           `json:"redis_port" validate:"gte=1,lte=65535"`
	RedisHost        string        `json:"redis_host" validate:"required_if=RedisEnabled true"`
	RedisPassword    string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	if err := validator.NewValidator().Err(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Relay is the wired relay server: the HTTP handler plus the redis fan-out
// loop when redis is enabled.
type Relay struct {
	Handler http.Handler
	service interface {
		Run(ctx context.Context) error
	}
}

// NewRelay wires the relay. rc may be nil for a single instance relay.
func NewRelay(cfg *AppConfig, rc *redis.Client, logger *slog.Logger) *Relay {
	connRepo := inmemory.NewRepo(logger)
	relayService := relay.NewService(connRepo, rc, &relay.Config{
		WriteTimeout: writeTimeout,
	}, logger)

	var idleTimeout time.Duration
	if cfg.KeepAlive > 0 {
		idleTimeout = 3 * cfg.KeepAlive
	}
	c := controller.NewController(relayService, &controller.Config{
		ConnectRateLimit: cfg.ConnectRateLimit,
		IdleTimeout:      idleTimeout,
		WriteTimeout:     writeTimeout,
	}, logger)

	return &Relay{Handler: c.GetMux(), service: relayService}
}

func (r *Relay) Run(ctx context.Context) error {
	return r.service.Run(ctx)
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)
	slog.SetDefault(logger)

	var rc *redis.Client
	if cfg.RedisEnabled {
		var err error
		rc, err = redisclient.NewRedisClient(ctx, &redisclient.Config{
			Port:     cfg.RedisPort,
			Host:     cfg.RedisHost,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		defer rc.Close()
	}

	lr := NewRelay(cfg, rc, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: lr.Handler}

	logger.InfoContext(ctx, "starting server", "address", server.Addr, "redis", cfg.RedisEnabled)

	return serve(ctx, server, lr.Run, logger)
}

// serve runs the http server and the relay loop until a signal, ctx or a
// relay failure stops them. A relay failure is returned.
func serve(ctx context.Context, server *http.Server, runRelay func(context.Context) error, logger *slog.Logger) error {
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	relayErr := make(chan error, 1)
	go func() {
		relayErr <- runRelay(serverCtx)
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	shutdown := make(chan error, 1)
	go func() {
		var cause error
		select {
		case <-sig:
		case <-serverCtx.Done():
		case err := <-relayErr:
			if err != nil {
				logger.Error("relay stopped", "error", err)
				cause = fmt.Errorf("relay stopped: %w", err)
			}
		}

		shutdownCtx, c := context.WithTimeout(context.Background(), 30*time.Second)
		defer c()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
		serverStopCtx()
		shutdown <- cause
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-shutdown
}
