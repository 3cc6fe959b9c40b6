package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sharetube/liveroom/internal/service/relay"
	"github.com/sharetube/liveroom/pkg/ctxlogger"
	"github.com/sharetube/liveroom/pkg/wsrouter"
)

type joinParams struct {
	SessionID string `json:"session-id" validate:"required,max=128"`
	ClientID  string `json:"client-id" validate:"required,uuid4"`
}

func (c controller) joinLiveRoom(w http.ResponseWriter, r *http.Request) {
	params := joinParams{
		SessionID: chi.URLParam(r, "session-id"),
		ClientID:  r.URL.Query().Get("client-id"),
	}
	if errs, ok := c.validate.Validate(&params); !ok {
		c.logger.DebugContext(r.Context(), "invalid join params", "errors", errs)
		c.writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	ctx := ctxlogger.AppendCtx(r.Context(),
		slog.String("session_id", params.SessionID),
		slog.String("client_id", params.ClientID),
	)

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		return
	}
	defer ws.Close()

	conn, err := c.relayService.Join(ctx, &relay.JoinParams{
		Conn:      ws,
		SessionID: params.SessionID,
		ClientID:  params.ClientID,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to join", "error", err)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
		return
	}
	defer func() {
		if err := c.relayService.Leave(ctx, conn); err != nil {
			c.logger.WarnContext(ctx, "failed to leave", "error", err)
		}
	}()

	if c.cfg.IdleTimeout > 0 {
		if err := ws.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout)); err != nil {
			c.logger.WarnContext(ctx, "failed to set read deadline", "error", err)
			return
		}
	}

	ctx = context.WithValue(ctx, connCtxKey, conn)
	if err := c.wsmux.ServeConn(ctx, ws); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.logger.DebugContext(ctx, "connection closed")
			return
		}
		c.logger.InfoContext(ctx, "connection ended", "error", err)
	}
}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ *wsrouter.Message) error {
	return nil
}

func (c controller) handleStateUpdate(ctx context.Context, _ *websocket.Conn, msg *wsrouter.Message) error {
	if len(msg.Payload) == 0 {
		return errors.New("state-update without payload")
	}

	if err := c.relayService.Relay(ctx, &relay.RelayParams{
		Sender:  c.getConnFromCtx(ctx),
		Event:   msg.Event,
		Payload: msg.Payload,
	}); err != nil {
		return fmt.Errorf("failed to relay state update: %w", err)
	}

	return nil
}

// handleWSError reports handler errors to the sender and keeps the
// connection open.
func (c controller) handleWSError(ctx context.Context, _ *websocket.Conn, err error) error {
	c.logger.InfoContext(ctx, "websocket message rejected", "error", err)

	conn := c.getConnFromCtx(ctx)
	if conn == nil {
		return err
	}

	return conn.WriteJSON(map[string]string{"error": err.Error()}, c.cfg.WriteTimeout)
}
