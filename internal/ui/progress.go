package ui

import (
	"sync"
	"time"
)

// speedInterval is the minimum gap between throughput samples.
const speedInterval = 500 * time.Millisecond

// etaSmoothing is the weight of the newest ETA estimate.
const etaSmoothing = 0.3

// ProgressTracker accumulates progress, throughput and stage timings.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.Mutex
	stage      Stage
	current    int
	total      int
	message    string
	start      time.Time
	stageStart time.Time
	timings    StageTimings
	errors     []ErrorEvent
	warnings   []ErrorEvent
	lastETA    time.Duration

	lastCurrent int
	lastSample  time.Time
	speed       SpeedStats
	samples     int
	sparkline   *Sparkline

	now func() time.Time
}

// SpeedStats holds throughput in units per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a snapshot of a tracker.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	ETA        time.Duration
	Message    string
	ErrorCount int
	WarnCount  int
	Speed      SpeedStats
}

// NewProgressTracker creates a tracker positioned at the chunking stage.
func NewProgressTracker() *ProgressTracker {
	return newProgressTracker(time.Now)
}

func newProgressTracker(now func() time.Time) *ProgressTracker {
	t := now()
	return &ProgressTracker{
		stage:      StageChunking,
		start:      t,
		stageStart: t,
		lastSample: t,
		timings:    StageTimings{},
		sparkline:  NewSparkline(60),
		now:        now,
	}
}

// SetStage closes the timing of the current stage and starts stage.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.now()
	p.timings[p.stage] += t.Sub(p.stageStart)

	p.stage = stage
	p.total = total
	p.current = 0
	p.message = ""
	p.stageStart = t
	p.lastETA = 0

	p.lastCurrent = 0
	p.lastSample = t
	p.speed = SpeedStats{}
	p.samples = 0
	p.sparkline.Clear()
}

// Update sets the progress within the current stage. A non-empty message
// replaces the previous one.
func (p *ProgressTracker) Update(current int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if message != "" {
		p.message = message
	}

	t := p.now()
	elapsed := t.Sub(p.lastSample)
	if elapsed < speedInterval {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		rate := float64(delta) / elapsed.Seconds()
		p.speed.Current = rate
		p.samples++
		if p.samples == 1 {
			p.speed.Avg = rate
		} else {
			p.speed.Avg = 0.2*rate + 0.8*p.speed.Avg
		}
		p.speed.Peak = max(p.speed.Peak, rate)
		p.sparkline.Add(rate)
	}
	p.lastCurrent = current
	p.lastSample = t
}

// Observe applies an event, switching stage when it differs.
func (p *ProgressTracker) Observe(event ProgressEvent) {
	p.mu.Lock()
	same := event.Stage == p.stage && event.Total == p.total
	p.mu.Unlock()

	if !same {
		p.SetStage(event.Stage, event.Total)
	}
	p.Update(event.Current, event.Message)
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ErrorEvent(nil), p.warnings...)
}

// Elapsed returns the time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now().Sub(p.start)
}

// Timings returns the time spent per stage, including the running one.
func (p *ProgressTracker) Timings() StageTimings {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(StageTimings, len(p.timings)+1)
	for s, d := range p.timings {
		out[s] = d
	}
	if p.stage != StageComplete {
		out[p.stage] += p.now().Sub(p.stageStart)
	}
	return out
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Progress:   fraction(p.current, p.total),
		ETA:        p.eta(),
		Message:    p.message,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
		Speed:      p.speed,
	}
}

// RenderSparkline renders recent throughput; width <= 0 uses the full buffer.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sparkline.RenderWithWidth(width)
}

// eta estimates the remaining time of the stage with exponential
// smoothing. Must be called with the lock held.
func (p *ProgressTracker) eta() time.Duration {
	f := fraction(p.current, p.total)
	if f <= 0 || f >= 1 {
		return 0
	}

	elapsed := p.now().Sub(p.stageStart)
	remaining := time.Duration(float64(elapsed)/f) - elapsed
	if remaining <= 0 {
		return 0
	}
	if p.lastETA > 0 {
		remaining = time.Duration(etaSmoothing*float64(remaining) + (1-etaSmoothing)*float64(p.lastETA))
	}
	p.lastETA = remaining
	return remaining
}

func fraction(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return min(float64(current)/float64(total), 1)
}
