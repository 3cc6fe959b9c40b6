package participant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/liveroom/internal/access"
	"github.com/sharetube/liveroom/internal/lifecycle"
	"github.com/sharetube/liveroom/internal/playlist"
	scheduleRedis "github.com/sharetube/liveroom/internal/repository/schedule/redis"
	"github.com/sharetube/liveroom/internal/scheduler"
	"github.com/sharetube/liveroom/internal/tone"
	"github.com/sharetube/liveroom/internal/transport"
	redisTransport "github.com/sharetube/liveroom/internal/transport/redis"
	"github.com/sharetube/liveroom/internal/transport/ws"
	"github.com/sharetube/liveroom/pkg/ctxlogger"
	"github.com/sharetube/liveroom/pkg/redisclient"
	"github.com/sharetube/liveroom/pkg/validator"
)

type Config struct {
	SessionID     string `json:"session_id" validate:"required,max=128"`
	ParticipantID string `json:"participant_id" validate:"required"`
	Host          bool   `json:"host"`
	// RelayURL selects the websocket transport; empty joins through redis.
	RelayURL  string        `json:"relay_url" validate:"omitempty,url"`
	KeepAlive time.Duration `json:"keepalive" validate:"gte=0"`
	// Heartbeat is how often a quiet host re-publishes its snapshot for late
	// joiners; zero disables it.
	Heartbeat time.Duration `json:"heartbeat" validate:"gte=0"`
	// ClickOutput receives raw PCM clicks: a file path, "-" for stdout, or
	// empty to discard them.
	ClickOutput   string `json:"click_output"`
	LogLevel      string `json:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
	RedisHost     string `json:"redis_host" validate:"required"`
	RedisPort     int    `json:"redis_port" validate:"gte=1,lte=65535"`
	RedisPassword string `json:"-"`
}

func (cfg *Config) Validate() error {
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	if err := validator.NewValidator().Err(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Deps are the collaborators Run builds from the config.
type Deps struct {
	Redis     *redis.Client
	Transport transport.Transport
	Clicks    io.Writer
	In        io.Reader
	Logger    *slog.Logger
}

// Run connects with the configured redis and transport and serves commands
// from stdin until quit, EOF or ctx is done.
func Run(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	// stdout may carry clicks
	logger := slog.New(&ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}),
	})

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	var tr transport.Transport = redisTransport.New(rc, 5*time.Second, logger)
	if cfg.RelayURL != "" {
		tr = ws.New(ws.Config{
			BaseURL:          cfg.RelayURL,
			HandshakeTimeout: 10 * time.Second,
			KeepAlive:        cfg.KeepAlive,
		}, logger)
	}

	clicks := io.Discard
	switch cfg.ClickOutput {
	case "":
	case "-":
		clicks = os.Stdout
	default:
		f, err := os.Create(cfg.ClickOutput)
		if err != nil {
			return fmt.Errorf("failed to open click output: %w", err)
		}
		defer f.Close()
		clicks = f
	}

	return Session(ctx, cfg, &Deps{
		Redis:     rc,
		Transport: tr,
		Clicks:    clicks,
		In:        os.Stdin,
		Logger:    logger,
	})
}

// Session runs one participant on already built collaborators.
func Session(ctx context.Context, cfg *Config, deps *Deps) error {
	logger := deps.Logger
	ctx = ctxlogger.AppendCtx(ctx,
		slog.String("session_id", cfg.SessionID),
		slog.String("participant_id", cfg.ParticipantID),
	)

	perms := access.NewSet()
	if cfg.Host {
		perms = access.NewSet(access.ManagePlaylists)
	}

	playlists := playlist.NewService(scheduleRedis.NewRepo(deps.Redis))
	clicker := tone.NewClicker(deps.Clicks)

	c, err := lifecycle.New(lifecycle.Config{
		SessionID:         cfg.SessionID,
		ParticipantID:     cfg.ParticipantID,
		Access:            perms,
		Playlists:         playlists,
		Catalog:           playlists,
		Transport:         deps.Transport,
		Logger:            logger,
		HeartbeatInterval: cfg.Heartbeat,
		NewClicker:        func() (scheduler.Clicker, error) { return clicker, nil },
	})
	if err != nil {
		return err
	}
	defer c.Close()

	c.Subscribe(newViewLogger(ctx, c, logger).onView)

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	logger.InfoContext(ctx, "joined session", "role", c.Role(), "status", c.Status())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(deps.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	current := func() (int, int) {
		st := c.View().State
		return st.ScrollState.Speed, st.MetronomeState.BPM
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := Execute(c, current, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				logger.WarnContext(ctx, "command failed", "command", line, "error", err)
			}
		}
	}
}

// viewLogger logs every change of what the participant is looking at.
type viewLogger struct {
	ctx    context.Context
	c      *lifecycle.Controller
	logger *slog.Logger

	mu        sync.Mutex
	status    lifecycle.Status
	item      string
	transpose int
}

func newViewLogger(ctx context.Context, c *lifecycle.Controller, logger *slog.Logger) *viewLogger {
	return &viewLogger{ctx: ctx, c: c, logger: logger}
}

func (l *viewLogger) onView(v lifecycle.View) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v.Status != l.status {
		l.status = v.Status
		l.logger.InfoContext(l.ctx, "status changed", "status", v.Status)
	}

	if v.Item == nil {
		return
	}
	if v.Item.ID == l.item && v.State.TransposeOffset == l.transpose {
		return
	}
	if v.Item.ID != l.item {
		l.c.SetMaxScroll(maxScroll(v.Item.Content))
	}
	l.item, l.transpose = v.Item.ID, v.State.TransposeOffset

	l.logger.InfoContext(l.ctx, "showing item",
		"item_id", v.Item.ID,
		"title", v.Item.Title,
		"transpose", v.State.TransposeOffset,
		"bpm", v.State.MetronomeState.BPM,
		"content", Render(v.Item.Content, v.State.TransposeOffset),
	)
}
