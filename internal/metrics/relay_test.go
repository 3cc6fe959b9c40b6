package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncRelayed(t *testing.T) {
	before := testutil.ToFloat64(RelayedMessagesTotal.WithLabelValues("state-update", "local"))
	IncRelayed("state-update", "local")
	assert.Equal(t, before+1, testutil.ToFloat64(RelayedMessagesTotal.WithLabelValues("state-update", "local")))

	before = testutil.ToFloat64(RelayedMessagesTotal.WithLabelValues("unknown", "redis"))
	IncRelayed("", "redis")
	assert.Equal(t, before+1, testutil.ToFloat64(RelayedMessagesTotal.WithLabelValues("unknown", "redis")))
}

func TestIncDroppedWrite(t *testing.T) {
	before := testutil.ToFloat64(DroppedWritesTotal.WithLabelValues("unknown"))
	IncDroppedWrite("")
	assert.Equal(t, before+1, testutil.ToFloat64(DroppedWritesTotal.WithLabelValues("unknown")))
}
