package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/liveroom/pkg/ctxlogger"
	"github.com/sharetube/liveroom/pkg/wsrouter"
)

// idleDeadlineWSMw pushes the read deadline forward on every message.
func (c controller) idleDeadlineWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
		return func(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) error {
			if c.cfg.IdleTimeout > 0 {
				if err := conn.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout)); err != nil {
					return err
				}
			}
			return next(ctx, conn, msg)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
		return func(ctx context.Context, conn *websocket.Conn, msg *wsrouter.Message) error {
			ctx = ctxlogger.AppendCtx(ctx,
				slog.String("ws_request_id", c.generateTimeBasedId()),
				slog.String("event", wsrouter.GetEventFromCtx(ctx)),
			)

			start := time.Now()
			err := next(ctx, conn, msg)
			c.logger.DebugContext(ctx, "websocket message handled",
				"payload_bytes", len(msg.Payload),
				"processing_time_us", time.Since(start).Microseconds(),
			)

			return err
		}
	}
}
