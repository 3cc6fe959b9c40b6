package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/liveroom/internal/repository/connection"
)

type repo struct {
	channels map[string]map[string]*connection.Conn
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		channels: make(map[string]map[string]*connection.Conn),
		logger:   logger,
	}
}

func (r *repo) Add(conn *connection.Conn) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "channel", conn.Channel, "client_id", conn.ClientID)
	members, ok := r.channels[conn.Channel]
	if !ok {
		members = make(map[string]*connection.Conn)
		r.channels[conn.Channel] = members
	}
	if _, exists := members[conn.ClientID]; exists {
		r.logger.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	members[conn.ClientID] = conn

	r.logger.Debug(funcName, "result", "OK")
	return nil
}

func (r *repo) Remove(conn *connection.Conn) error {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "channel", conn.Channel, "client_id", conn.ClientID)
	members := r.channels[conn.Channel]
	if members[conn.ClientID] != conn {
		r.logger.Info(funcName, "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}

	delete(members, conn.ClientID)
	if len(members) == 0 {
		delete(r.channels, conn.Channel)
	}

	r.logger.Debug(funcName, "result", "OK")
	return nil
}

// List returns a snapshot of the channel's connections.
func (r *repo) List(channel string) []*connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.channels[channel]
	conns := make([]*connection.Conn, 0, len(members))
	for _, c := range members {
		conns = append(conns, c)
	}

	return conns
}

func (r *repo) Count(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}
