package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/MRamiBalles/hintserver/internal/events"
	"github.com/MRamiBalles/hintserver/internal/hint"
	"github.com/MRamiBalles/hintserver/internal/platform/logger"
	"github.com/MRamiBalles/hintserver/internal/platform/metrics"
)

var (
	ErrQueueFull = errors.New("engine command queue full")
	ErrStopped   = errors.New("engine stopped")
)

// Command runs on the frame goroutine with exclusive access to the scheduler.
type Command func(s *hint.Scheduler)

// Options configures an Engine. Zero values get working defaults.
type Options struct {
	TickRate      time.Duration
	CommandBuffer int
	Clock         hint.Clock
	Logger        *logger.Logger
	Metrics       *metrics.Collector
	EventLog      *events.EventLog
}

// Engine owns the scheduler and serializes every access to it.
type Engine struct {
	sched    *hint.Scheduler
	clock    hint.Clock
	logger   *logger.Logger
	metrics  *metrics.Collector
	eventLog *events.EventLog
	ticker   *Ticker

	commands chan Command
	stopped  chan struct{}
	running  atomic.Bool
	dropped  atomic.Int64
}

// NewEngine wraps sched. sched must not be used directly once the engine runs.
func NewEngine(sched *hint.Scheduler, opts Options) *Engine {
	if opts.CommandBuffer <= 0 {
		opts.CommandBuffer = 256
	}
	if opts.Clock == nil {
		opts.Clock = hint.ClockFunc(time.Now)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	if opts.EventLog == nil {
		opts.EventLog = events.NewEventLog(nil)
	}
	e := &Engine{
		sched:    sched,
		clock:    opts.Clock,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		eventLog: opts.EventLog,
		commands: make(chan Command, opts.CommandBuffer),
		stopped:  make(chan struct{}),
	}
	e.ticker = NewTicker(opts.TickRate, e.Step, opts.Logger)
	return e
}

// Run drives the frame loop until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	defer close(e.stopped)
	e.ticker.Start(ctx)
	return nil
}

// Step runs one host frame: pending commands first, then the scheduler.
// Run calls it on every tick; tests and the scenario runner call it directly.
func (e *Engine) Step() {
	start := time.Now()
	e.drain()
	e.sched.Tick()
	e.metrics.RecordTick(time.Since(start))
}

func (e *Engine) drain() {
	for {
		select {
		case cmd := <-e.commands:
			cmd(e.sched)
		default:
			return
		}
	}
}

// Submit queues cmd for the next frame without waiting for it.
func (e *Engine) Submit(cmd Command) error {
	select {
	case <-e.stopped:
		return ErrStopped
	default:
	}
	select {
	case e.commands <- cmd:
		return nil
	default:
		e.dropped.Add(1)
		e.metrics.RecordWSError()
		return ErrQueueFull
	}
}

// SubmitWait queues cmd for the next frame, waiting for room in the queue
// until ctx is done.
func (e *Engine) SubmitWait(ctx context.Context, cmd Command) error {
	select {
	case <-e.stopped:
		return ErrStopped
	default:
	}
	select {
	case e.commands <- cmd:
		return nil
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		e.dropped.Add(1)
		return errors.Wrap(ErrQueueFull, ctx.Err().Error())
	}
}

// Call queues fn and waits for its result.
func (e *Engine) Call(ctx context.Context, fn func(s *hint.Scheduler) error) error {
	errc := make(chan error, 1)
	if err := e.Submit(func(s *hint.Scheduler) { errc <- fn(s) }); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many commands were rejected because the queue was full.
func (e *Engine) Dropped() int64 {
	return e.dropped.Load()
}

// Clock returns the clock elements created by the engine should use.
func (e *Engine) Clock() hint.Clock {
	return e.clock
}

// EventLog exposes the diagnostics log.
func (e *Engine) EventLog() *events.EventLog {
	return e.eventLog
}
