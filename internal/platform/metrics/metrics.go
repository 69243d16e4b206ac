// Package metrics provides observability for the hint server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Composite pass metrics
	Passes         int64
	PayloadsSent   int64
	EmptySends     int64
	SkippedSends   int64
	BytesSent      int64
	OverflowDrops  int64
	ElementFaults  int64
	StaleRemovals  int64
	IntervalMillis int64
	TemporaryShown int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{StartTime: time.Now()}
}

// RecordTick records a host frame callback completion.
func (c *Collector) RecordTick(latency time.Duration) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordPass records a completed composite pass over all players and the
// interval negotiated for the next one.
func (c *Collector) RecordPass(next time.Duration) {
	atomic.AddInt64(&c.Passes, 1)
	atomic.StoreInt64(&c.IntervalMillis, next.Milliseconds())
}

// RecordSend records a payload handed to the sink.
func (c *Collector) RecordSend(textLen int, empty bool) {
	if empty {
		atomic.AddInt64(&c.EmptySends, 1)
		return
	}
	atomic.AddInt64(&c.PayloadsSent, 1)
	atomic.AddInt64(&c.BytesSent, int64(textLen))
}

// RecordSkippedSend records a redundant empty send that was suppressed.
func (c *Collector) RecordSkippedSend() {
	atomic.AddInt64(&c.SkippedSends, 1)
}

// RecordOverflow records a contribution rejected by the size budget.
func (c *Collector) RecordOverflow() {
	atomic.AddInt64(&c.OverflowDrops, 1)
}

// RecordFault records an element whose update or draw failed.
func (c *Collector) RecordFault() {
	atomic.AddInt64(&c.ElementFaults, 1)
}

// RecordStaleRemoval records an element cleaned up by deferred removal.
func (c *Collector) RecordStaleRemoval() {
	atomic.AddInt64(&c.StaleRemovals, 1)
}

// RecordTemporary records a temporary message becoming current.
func (c *Collector) RecordTemporary() {
	atomic.AddInt64(&c.TemporaryShown, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"hints": map[string]interface{}{
			"passes":          atomic.LoadInt64(&c.Passes),
			"payloads_sent":   atomic.LoadInt64(&c.PayloadsSent),
			"empty_sends":     atomic.LoadInt64(&c.EmptySends),
			"skipped_sends":   atomic.LoadInt64(&c.SkippedSends),
			"bytes_sent":      atomic.LoadInt64(&c.BytesSent),
			"overflow_drops":  atomic.LoadInt64(&c.OverflowDrops),
			"element_faults":  atomic.LoadInt64(&c.ElementFaults),
			"stale_removals":  atomic.LoadInt64(&c.StaleRemovals),
			"interval_ms":     atomic.LoadInt64(&c.IntervalMillis),
			"temporary_shown": atomic.LoadInt64(&c.TemporaryShown),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics.json endpoint.
func Handler(c *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler(c *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP hint_%s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE hint_%s counter\n", name)
			fmt.Fprintf(w, "hint_%s %d\n\n", name, v)
		}
		gauge := func(name, help string, v float64) {
			fmt.Fprintf(w, "# HELP hint_%s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE hint_%s gauge\n", name)
			fmt.Fprintf(w, "hint_%s %.2f\n\n", name, v)
		}

		// Tick metrics
		counter("tick_count", "Total host frame callbacks", atomic.LoadInt64(&c.TickCount))
		gauge("tick_latency_max_ms", "Maximum frame callback latency", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		// Composite metrics
		counter("passes_total", "Composite passes over all players", atomic.LoadInt64(&c.Passes))
		counter("payloads_sent_total", "Non-empty payloads sent", atomic.LoadInt64(&c.PayloadsSent))
		counter("empty_sends_total", "Clear payloads sent", atomic.LoadInt64(&c.EmptySends))
		counter("skipped_sends_total", "Redundant empty sends suppressed", atomic.LoadInt64(&c.SkippedSends))
		counter("bytes_sent_total", "Payload text bytes sent", atomic.LoadInt64(&c.BytesSent))
		counter("overflow_drops_total", "Contributions rejected by the size budget", atomic.LoadInt64(&c.OverflowDrops))
		counter("element_faults_total", "Element update or draw failures", atomic.LoadInt64(&c.ElementFaults))
		counter("stale_removals_total", "Elements removed by deferred cleanup", atomic.LoadInt64(&c.StaleRemovals))
		gauge("interval_ms", "Negotiated wait before the next pass", float64(atomic.LoadInt64(&c.IntervalMillis)))

		// WebSocket metrics
		gauge("ws_connections", "Active WebSocket connections", float64(atomic.LoadInt64(&c.WSConnectionsActive)))
		fmt.Fprintf(w, "# HELP hint_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE hint_ws_messages_total counter\n")
		fmt.Fprintf(w, "hint_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "hint_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))
		counter("ws_errors_total", "WebSocket send errors and drops", atomic.LoadInt64(&c.WSErrors))
	}
}
