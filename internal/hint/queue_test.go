package hint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityInsertResumesInterruptedMessage(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var q MessageQueue
	q.Push(TemporaryMessage{Content: "A", Duration: 5 * time.Second})
	q.Push(TemporaryMessage{Content: "B", Duration: 5 * time.Second})

	m, ok, fresh := q.Advance(t0)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, "A", m.Content)

	q.PushPriority(TemporaryMessage{Content: "C", Duration: 3 * time.Second}, t0.Add(2*time.Second))
	_, showing := q.Current()
	assert.False(t, showing)

	var order []string
	now := t0.Add(2 * time.Second)
	for step := 0; step < 20; step++ {
		if m, ok, fresh := q.Advance(now); ok && fresh {
			order = append(order, m.Content)
		}
		now = now.Add(500 * time.Millisecond)
	}
	assert.Equal(t, []string{"C", "A", "B"}, order)
}

func TestInterruptedMessageKeepsItsProgress(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var q MessageQueue
	q.Push(TemporaryMessage{Content: "A", Duration: 5 * time.Second})
	q.Advance(t0)

	q.PushPriority(TemporaryMessage{Content: "C", Duration: 3 * time.Second}, t0.Add(2*time.Second))
	q.Advance(t0.Add(2 * time.Second))

	m, ok, fresh := q.Advance(t0.Add(5 * time.Second))
	require.True(t, ok)
	require.True(t, fresh)
	assert.Equal(t, "A", m.Content)
	assert.Equal(t, 3*time.Second, m.Remaining())

	_, ok, _ = q.Advance(t0.Add(7*time.Second + 999*time.Millisecond))
	assert.True(t, ok)
	_, ok, _ = q.Advance(t0.Add(8 * time.Second))
	assert.False(t, ok)
}

func TestExpiredMessageIsNotRequeued(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var q MessageQueue
	q.Push(TemporaryMessage{Content: "A", Duration: 5 * time.Second})
	q.Advance(t0)

	// A ran out at t0+5s but no pass has expired it yet.
	q.PushPriority(TemporaryMessage{Content: "C", Duration: 3 * time.Second}, t0.Add(5200*time.Millisecond))
	assert.Equal(t, 1, q.Len())

	m, ok, _ := q.Advance(t0.Add(5200 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, "C", m.Content)

	_, ok, _ = q.Advance(t0.Add(8600 * time.Millisecond))
	assert.False(t, ok)
}

func TestAdvanceSkipsSpentMessages(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var q MessageQueue
	q.Push(TemporaryMessage{Content: "spent", Duration: 2 * time.Second, elapsed: 2 * time.Second})
	q.Push(TemporaryMessage{Content: "empty"})
	q.Push(TemporaryMessage{Content: "B", Duration: time.Second})

	m, ok, fresh := q.Advance(now)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, "B", m.Content)
	assert.Zero(t, q.Len())
}

func TestPriorityInsertWhenIdle(t *testing.T) {
	var q MessageQueue
	now := time.Now()
	q.Push(TemporaryMessage{Content: "A", Duration: time.Second})
	q.PushPriority(TemporaryMessage{Content: "C", Duration: time.Second}, now)
	assert.Equal(t, 2, q.Len())

	m, _, _ := q.Advance(now)
	assert.Equal(t, "C", m.Content)
	assert.Equal(t, 1, q.Len())

	q.Clear()
	_, ok, _ := q.Advance(now)
	assert.False(t, ok)
}

func TestStopwatchPause(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var sw Stopwatch
	assert.Equal(t, time.Duration(0), sw.Elapsed(t0))

	sw.Start(t0, time.Second)
	assert.Equal(t, 3*time.Second, sw.Elapsed(t0.Add(2*time.Second)))

	sw.Pause(t0.Add(2 * time.Second))
	assert.Equal(t, 3*time.Second, sw.Elapsed(t0.Add(time.Minute)))

	sw.Resume(t0.Add(time.Minute))
	assert.Equal(t, 4*time.Second, sw.Elapsed(t0.Add(time.Minute+time.Second)))

	sw.Reset()
	assert.Equal(t, time.Duration(0), sw.Elapsed(t0))
}
