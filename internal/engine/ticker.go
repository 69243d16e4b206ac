// Package engine drives the hint scheduler from the host frame loop.
//
// The Ticker goroutine is the only one that touches scheduler state. Every
// other goroutine (websocket pumps, HTTP handlers) submits closures through
// the Engine command queue, which is drained at the start of each frame.
package engine

import (
	"context"
	"time"

	"github.com/MRamiBalles/hintserver/internal/platform/logger"
)

// DefaultTickRate is the host frame cadence.
const DefaultTickRate = 20 * time.Millisecond

// Ticker calls frame at a fixed cadence until stopped.
// It knows nothing about hints, only about time.
type Ticker struct {
	rate     time.Duration
	frame    func()
	logger   *logger.Logger
	stopChan chan struct{}
}

// NewTicker creates a ticker invoking frame every rate.
func NewTicker(rate time.Duration, frame func(), log *logger.Logger) *Ticker {
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return &Ticker{
		rate:     rate,
		frame:    frame,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Start runs the frame loop. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Info("frame loop started", "rate", t.rate)

	ticker := time.NewTicker(t.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("frame loop stopped by context")
			return
		case <-t.stopChan:
			t.logger.Info("frame loop stopped manually")
			return
		case <-ticker.C:
			t.frame()
		}
	}
}

// Stop gracefully stops the ticker.
func (t *Ticker) Stop() {
	close(t.stopChan)
}
