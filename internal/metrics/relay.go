package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Participants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liveroom_participants",
		Help: "Websocket participants currently connected to this relay",
	})

	RelayedMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveroom_relayed_messages_total",
		Help: "Envelopes accepted for relay, by event and path",
	}, []string{"event", "path"})

	DroppedWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveroom_dropped_writes_total",
		Help: "Envelopes that could not be written to a participant",
	}, []string{"reason"})
)

// IncRelayed records an envelope accepted for fan-out. path is "local" or
// "redis".
func IncRelayed(event, path string) {
	if event == "" {
		event = "unknown"
	}
	RelayedMessagesTotal.WithLabelValues(event, path).Inc()
}

func IncDroppedWrite(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	DroppedWritesTotal.WithLabelValues(reason).Inc()
}
