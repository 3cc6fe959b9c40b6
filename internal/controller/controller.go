package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/liveroom/internal/repository/connection"
	"github.com/sharetube/liveroom/internal/service/relay"
	"github.com/sharetube/liveroom/pkg/validator"
	"github.com/sharetube/liveroom/pkg/wsrouter"
)

type iRelayService interface {
	Join(context.Context, *relay.JoinParams) (*connection.Conn, error)
	Leave(context.Context, *connection.Conn) error
	Relay(context.Context, *relay.RelayParams) error
}

type Config struct {
	// ConnectRateLimit is the number of websocket upgrades allowed per IP per
	// minute.
	ConnectRateLimit int
	// IdleTimeout closes connections that sent nothing, not even ALIVE, for
	// this long.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
}

type controller struct {
	relayService iRelayService
	upgrader     websocket.Upgrader
	validate     *validator.Validator
	wsmux        *wsrouter.WSRouter
	logger       *slog.Logger
	cfg          Config
}

func NewController(relayService iRelayService, cfg *Config, logger *slog.Logger) *controller {
	c := &controller{
		relayService: relayService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
		cfg:      *cfg,
	}
	if c.cfg.WriteTimeout <= 0 {
		c.cfg.WriteTimeout = 5 * time.Second
	}
	c.wsmux = c.getWSRouter()

	return c
}
