package wsrouter

import "context"

type ctxKey string

const (
	eventKey ctxKey = "event"
)

func GetEventFromCtx(ctx context.Context) string {
	event, _ := ctx.Value(eventKey).(string)
	return event
}
