package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	c := NewCollector()
	c.RecordTick(2 * time.Millisecond)
	c.RecordTick(4 * time.Millisecond)
	c.RecordPass(100 * time.Millisecond)
	c.RecordSend(120, false)
	c.RecordSend(0, true)
	c.RecordSkippedSend()
	c.RecordOverflow()
	c.RecordWSConnection(1)
	c.RecordWSMessage(true)

	snap := c.Snapshot()
	tick := snap["tick"].(map[string]interface{})
	assert.Equal(t, int64(2), tick["count"])
	assert.InDelta(t, 3.0, tick["avg_latency_ms"], 0.001)
	assert.InDelta(t, 4.0, tick["max_latency_ms"], 0.001)

	hints := snap["hints"].(map[string]interface{})
	assert.Equal(t, int64(1), hints["passes"])
	assert.Equal(t, int64(100), hints["interval_ms"])
	assert.Equal(t, int64(1), hints["payloads_sent"])
	assert.Equal(t, int64(1), hints["empty_sends"])
	assert.Equal(t, int64(120), hints["bytes_sent"])
	assert.Equal(t, int64(1), hints["overflow_drops"])

	ws := snap["websocket"].(map[string]interface{})
	assert.Equal(t, int64(1), ws["active_connections"])
	assert.Equal(t, int64(1), ws["messages_in"])
}

func TestHandlers(t *testing.T) {
	c := NewCollector()
	c.RecordOverflow()
	c.RecordWSMessage(false)

	rec := httptest.NewRecorder()
	Handler(c)(rec, httptest.NewRequest(http.MethodGet, "/metrics.json", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "hints")

	rec = httptest.NewRecorder()
	PrometheusHandler(c)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()
	assert.Contains(t, out, "hint_overflow_drops_total 1")
	assert.Contains(t, out, `hint_ws_messages_total{direction="out"} 1`)
}
