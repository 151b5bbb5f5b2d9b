package ui

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestNewProgressTracker(t *testing.T) {
	// When: creating a tracker
	stats := NewProgressTracker().Stats()

	// Then: it starts at the chunking stage with no progress
	assert.Equal(t, StageChunking, stats.Stage)
	assert.Zero(t, stats.Current)
	assert.Zero(t, stats.Total)
}

func TestProgressTracker_SetStageResetsCounters(t *testing.T) {
	// Given: a tracker halfway through chunking
	tracker := NewProgressTracker()
	tracker.SetStage(StageChunking, 10)
	tracker.Update(5, "refunds")

	// When: moving to embedding
	tracker.SetStage(StageEmbedding, 40)

	// Then: counters and message reset
	stats := tracker.Stats()
	assert.Equal(t, StageEmbedding, stats.Stage)
	assert.Equal(t, 40, stats.Total)
	assert.Zero(t, stats.Current)
	assert.Empty(t, stats.Message)
}

func TestProgressTracker_Progress(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		expected float64
	}{
		{"zero total", 0, 0, 0},
		{"zero current", 0, 100, 0},
		{"half done", 50, 100, 0.5},
		{"complete", 100, 100, 1},
		{"overshoot is capped", 150, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewProgressTracker()
			tracker.SetStage(StageEmbedding, tt.total)
			tracker.Update(tt.current, "")

			assert.InDelta(t, tt.expected, tracker.Stats().Progress, 1e-9)
		})
	}
}

func TestProgressTracker_SpeedAndSparkline(t *testing.T) {
	// Given: a tracker on a fake clock
	clock := newFakeClock()
	tracker := newProgressTracker(clock.Now)
	tracker.SetStage(StageEmbedding, 100)

	// When: 20 chunks complete per second, then 40
	clock.Advance(time.Second)
	tracker.Update(20, "")
	clock.Advance(time.Second)
	tracker.Update(60, "")

	// Then: current, average and peak speed follow the samples
	speed := tracker.Stats().Speed
	assert.InDelta(t, 40, speed.Current, 1e-9)
	assert.InDelta(t, 0.2*40+0.8*20, speed.Avg, 1e-9)
	assert.InDelta(t, 40, speed.Peak, 1e-9)

	// And: the sparkline holds both samples
	assert.Equal(t, "▄█", tracker.RenderSparkline(2))
}

func TestProgressTracker_SpeedSampledAtInterval(t *testing.T) {
	// Given: a tracker on a fake clock
	clock := newFakeClock()
	tracker := newProgressTracker(clock.Now)
	tracker.SetStage(StageEmbedding, 100)

	// When: updates arrive faster than the sampling interval
	clock.Advance(100 * time.Millisecond)
	tracker.Update(10, "")

	// Then: no speed is computed yet
	assert.Zero(t, tracker.Stats().Speed.Current)
}

func TestProgressTracker_ETA(t *testing.T) {
	// Given: a quarter of the stage done in 10 seconds
	clock := newFakeClock()
	tracker := newProgressTracker(clock.Now)
	tracker.SetStage(StageEmbedding, 100)
	clock.Advance(10 * time.Second)
	tracker.Update(25, "")

	// Then: the first estimate is linear
	assert.Equal(t, 30*time.Second, tracker.Stats().ETA)

	// When: progress stalls for 10 more seconds
	clock.Advance(10 * time.Second)
	eta := tracker.Stats().ETA

	// Then: the new estimate is smoothed towards the previous one
	raw := 60 * time.Second
	assert.Equal(t, time.Duration(0.3*float64(raw)+0.7*float64(30*time.Second)), eta)
}

func TestProgressTracker_ETAZeroWhenDoneOrIdle(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetStage(StageVectors, 10)
	assert.Zero(t, tracker.Stats().ETA)

	tracker.Update(10, "")
	assert.Zero(t, tracker.Stats().ETA)
}

func TestProgressTracker_Timings(t *testing.T) {
	// Given: stages of known length
	clock := newFakeClock()
	tracker := newProgressTracker(clock.Now)
	tracker.SetStage(StageChunking, 3)
	clock.Advance(2 * time.Second)
	tracker.SetStage(StageEmbedding, 10)
	clock.Advance(5 * time.Second)

	// When: reading timings mid-stage
	timings := tracker.Timings()

	// Then: finished and running stages are both reported
	assert.Equal(t, 2*time.Second, timings[StageChunking])
	assert.Equal(t, 5*time.Second, timings[StageEmbedding])
	assert.Equal(t, 7*time.Second, tracker.Elapsed())

	// And: completing freezes the totals
	tracker.SetStage(StageComplete, 0)
	clock.Advance(time.Minute)
	assert.Equal(t, 5*time.Second, tracker.Timings()[StageEmbedding])
	assert.NotContains(t, tracker.Timings(), StageComplete)
}

func TestProgressTracker_Observe(t *testing.T) {
	tracker := NewProgressTracker()

	tracker.Observe(ProgressEvent{Stage: StageEmbedding, Current: 3, Total: 9, Message: "batch"})
	stats := tracker.Stats()
	assert.Equal(t, StageEmbedding, stats.Stage)
	assert.Equal(t, 3, stats.Current)
	assert.Equal(t, "batch", stats.Message)

	// Same stage keeps the message when the update has none
	tracker.Observe(ProgressEvent{Stage: StageEmbedding, Current: 6, Total: 9})
	stats = tracker.Stats()
	assert.Equal(t, 6, stats.Current)
	assert.Equal(t, "batch", stats.Message)
}

func TestProgressTracker_Errors(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.AddError(ErrorEvent{Err: assert.AnError})
	tracker.AddError(ErrorEvent{Err: assert.AnError, IsWarn: true})
	tracker.AddError(ErrorEvent{Err: assert.AnError, IsWarn: true})

	stats := tracker.Stats()
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 2, stats.WarnCount)
	require.Len(t, tracker.Errors(), 1)
	require.Len(t, tracker.Warnings(), 2)
}

func TestProgressTracker_ConcurrentUpdates(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetStage(StageEmbedding, 1000)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				tracker.Update(i*100+j, "")
				_ = tracker.Stats()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, StageEmbedding, tracker.Stats().Stage)
}
