package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sharetube/liveroom/pkg/wsrouter"
)

const (
	channelPrefix = "live-room-"

	EventStateUpdate = "state-update"
	// EventAlive is a keepalive understood by the relay server.
	EventAlive = "ALIVE"
)

var (
	ErrConnection = errors.New("failed to open channel")
	ErrNotOpen    = errors.New("connection is not open")
)

type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosed     Status = "closed"
	StatusError      Status = "error"
)

// Envelope is one message on a channel.
type Envelope = wsrouter.Message

type Handler func(payload json.RawMessage)

type Connection interface {
	// ID identifies this participant on the channel. Envelopes stamped with
	// it are never delivered back to the same connection.
	ID() string
	Publish(ctx context.Context, event string, payload any) error
	OnMessage(event string, handler Handler)
	OnStatus(func(Status))
	Status() Status
	Close() error
}

type Transport interface {
	Connect(ctx context.Context, sessionID string) (Connection, error)
}

func ChannelName(sessionID string) string {
	return channelPrefix + sessionID
}

// SessionIDFromChannel is the inverse of ChannelName.
func SessionIDFromChannel(channel string) (string, bool) {
	if len(channel) <= len(channelPrefix) || channel[:len(channelPrefix)] != channelPrefix {
		return "", false
	}
	return channel[len(channelPrefix):], true
}

// Encode builds the wire form of an envelope.
func Encode(from, event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(&Envelope{Event: event, From: from, Payload: raw})
}
