package hint

import "time"

// TemporaryMessage is a short-lived hint shown on its own timer, above
// whatever the elements draw.
type TemporaryMessage struct {
	Content  string
	Duration time.Duration

	// elapsed is display time already spent before a priority interruption.
	elapsed time.Duration
}

// Remaining returns the display time left for the message.
func (m TemporaryMessage) Remaining() time.Duration {
	if m.elapsed >= m.Duration {
		return 0
	}
	return m.Duration - m.elapsed
}

// Stopwatch measures display time and can be paused without counting the
// paused span.
type Stopwatch struct {
	start       time.Time
	accumulated time.Duration
	running     bool
	paused      bool
}

// Start restarts the stopwatch at now with initial time already elapsed.
func (s *Stopwatch) Start(now time.Time, initial time.Duration) {
	s.start = now
	s.accumulated = initial
	s.running = true
	s.paused = false
}

// Elapsed returns the time counted so far.
func (s *Stopwatch) Elapsed(now time.Time) time.Duration {
	if !s.running || s.paused {
		return s.accumulated
	}
	return s.accumulated + now.Sub(s.start)
}

// Pause stops counting until Resume.
func (s *Stopwatch) Pause(now time.Time) {
	if !s.running || s.paused {
		return
	}
	s.accumulated += now.Sub(s.start)
	s.paused = true
}

// Resume continues counting from now.
func (s *Stopwatch) Resume(now time.Time) {
	if !s.running || !s.paused {
		return
	}
	s.start = now
	s.paused = false
}

// Reset stops the stopwatch and zeroes it.
func (s *Stopwatch) Reset() {
	*s = Stopwatch{}
}

// MessageQueue is a player's FIFO of temporary messages plus the one
// currently on screen.
type MessageQueue struct {
	pending []TemporaryMessage
	current TemporaryMessage
	showing bool
	watch   Stopwatch
}

// Push appends m to the back of the queue.
func (q *MessageQueue) Push(m TemporaryMessage) {
	q.pending = append(q.pending, m)
}

// PushPriority puts m at the front of the queue. A message on screen is
// interrupted and requeued directly behind m, keeping the display time it
// already used. One whose time is already up is dropped instead.
func (q *MessageQueue) PushPriority(m TemporaryMessage, now time.Time) {
	front := []TemporaryMessage{m}
	if q.showing {
		interrupted := q.current
		interrupted.elapsed = q.watch.Elapsed(now)
		if interrupted.Remaining() > 0 {
			front = append(front, interrupted)
		}
		q.showing = false
		q.current = TemporaryMessage{}
		q.watch.Reset()
	}
	q.pending = append(front, q.pending...)
}

// Advance expires the current message if its time is up and promotes the
// next one. It returns the message on screen, if any, and whether it
// became current during this call.
func (q *MessageQueue) Advance(now time.Time) (TemporaryMessage, bool, bool) {
	if q.showing && q.watch.Elapsed(now) >= q.current.Duration {
		q.showing = false
		q.current = TemporaryMessage{}
		q.watch.Reset()
	}
	if q.showing {
		return q.current, true, false
	}

	for len(q.pending) > 0 {
		next := q.pending[0]
		q.pending[0] = TemporaryMessage{}
		q.pending = q.pending[1:]
		if next.Remaining() <= 0 {
			continue
		}
		q.current = next
		q.showing = true
		break
	}
	if !q.showing {
		return TemporaryMessage{}, false, false
	}
	q.watch.Start(now, q.current.elapsed)
	return q.current, true, true
}

// Current returns the message on screen.
func (q *MessageQueue) Current() (TemporaryMessage, bool) {
	return q.current, q.showing
}

// Pause freezes the current message's timer.
func (q *MessageQueue) Pause(now time.Time) {
	q.watch.Pause(now)
}

// Resume restarts the current message's timer.
func (q *MessageQueue) Resume(now time.Time) {
	q.watch.Resume(now)
}

// Len returns the number of messages waiting behind the current one.
func (q *MessageQueue) Len() int {
	return len(q.pending)
}

// Clear drops the current and all pending messages.
func (q *MessageQueue) Clear() {
	q.pending = nil
	q.current = TemporaryMessage{}
	q.showing = false
	q.watch.Reset()
}
