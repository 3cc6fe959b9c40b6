package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/liveroom/internal/metrics"
	"github.com/sharetube/liveroom/internal/repository/connection"
	"github.com/sharetube/liveroom/internal/transport"
)

const channelPattern = "live-room-*"

var (
	ErrClientIDTaken = errors.New("client id already connected to this session")
)

type iConnRepo interface {
	Add(*connection.Conn) error
	Remove(*connection.Conn) error
	List(channel string) []*connection.Conn
	Count(channel string) int
}

type Config struct {
	WriteTimeout time.Duration
}

// service fans envelopes out to every other participant of a channel. With
// a redis client the fan-out goes through redis so several relay instances
// can share channels, and redis transport participants can join directly.
type service struct {
	connRepo     iConnRepo
	rc           *redis.Client
	writeTimeout time.Duration
	logger       *slog.Logger
}

func NewService(connRepo iConnRepo, rc *redis.Client, cfg *Config, logger *slog.Logger) *service {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	return &service{
		connRepo:     connRepo,
		rc:           rc,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

type JoinParams struct {
	Conn      *websocket.Conn
	SessionID string
	ClientID  string
}

func (s service) Join(ctx context.Context, params *JoinParams) (*connection.Conn, error) {
	conn := connection.NewConn(params.Conn, transport.ChannelName(params.SessionID), params.ClientID)
	if err := s.connRepo.Add(conn); err != nil {
		if errors.Is(err, connection.ErrAlreadyExists) {
			return nil, ErrClientIDTaken
		}
		return nil, fmt.Errorf("failed to add connection: %w", err)
	}

	metrics.Participants.Inc()
	s.logger.InfoContext(ctx, "participant joined", "channel", conn.Channel, "participants", s.connRepo.Count(conn.Channel))

	return conn, nil
}

func (s service) Leave(ctx context.Context, conn *connection.Conn) error {
	if err := s.connRepo.Remove(conn); err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}

	metrics.Participants.Dec()
	s.logger.InfoContext(ctx, "participant left", "channel", conn.Channel, "participants", s.connRepo.Count(conn.Channel))

	return nil
}

type RelayParams struct {
	Sender  *connection.Conn
	Event   string
	Payload json.RawMessage
}

// Relay stamps the envelope with the sender's client id and forwards it.
func (s service) Relay(ctx context.Context, params *RelayParams) error {
	data, err := transport.Encode(params.Sender.ClientID, params.Event, params.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	if s.rc == nil {
		metrics.IncRelayed(params.Event, "local")
		s.deliver(ctx, params.Sender.Channel, params.Sender.ClientID, data)
		return nil
	}

	if err := s.rc.Publish(ctx, params.Sender.Channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}
	metrics.IncRelayed(params.Event, "redis")

	return nil
}

// Run delivers envelopes published on redis to local participants until ctx
// is done. Without redis it only waits for ctx.
func (s service) Run(ctx context.Context) error {
	if s.rc == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := s.rc.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channelPattern, err)
	}
	s.logger.InfoContext(ctx, "relaying through redis", "pattern", channelPattern)

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			var env transport.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.logger.DebugContext(ctx, "dropping undecodable envelope", "channel", msg.Channel, "error", err)
				continue
			}
			s.deliver(ctx, msg.Channel, env.From, []byte(msg.Payload))
		}
	}
}

func (s service) deliver(ctx context.Context, channel, from string, data []byte) {
	for _, conn := range s.connRepo.List(channel) {
		if conn.ClientID == from {
			continue
		}

		if err := conn.Write(data, s.writeTimeout); err != nil {
			metrics.IncDroppedWrite("write_error")
			s.logger.WarnContext(ctx, "failed to write envelope", "channel", channel, "client_id", conn.ClientID, "error", err)
		}
	}
}
