package index

import "sync"

// Stage identifies a build phase reported through Options.Progress.
type Stage int

const (
	// StageChunking splits documents into windows.
	StageChunking Stage = iota
	// StageLexical fits the lexical model.
	StageLexical
	// StageEmbedding embeds every chunk.
	StageEmbedding
	// StageVectors builds the vector index.
	StageVectors
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageChunking:
		return "chunking"
	case StageLexical:
		return "lexical"
	case StageEmbedding:
		return "embedding"
	case StageVectors:
		return "vectors"
	default:
		return "unknown"
	}
}

// Progress is a build progress update: Done of Total units in Stage.
// Units are documents while chunking and chunks otherwise.
type Progress struct {
	Stage Stage
	Done  int
	Total int
}

// ProgressFunc receives build progress. Calls are serialized and Done never
// decreases within a stage.
type ProgressFunc func(Progress)

// reporter serializes progress callbacks from concurrent embedding batches.
type reporter struct {
	mu    sync.Mutex
	fn    ProgressFunc
	stage Stage
	done  int
	total int
}

func newReporter(fn ProgressFunc) *reporter {
	return &reporter{fn: fn}
}

// begin starts a stage at zero.
func (r *reporter) begin(stage Stage, total int) {
	r.set(stage, 0, total)
}

// finish marks the stage complete.
func (r *reporter) finish(stage Stage, total int) {
	r.set(stage, total, total)
}

// add advances the current stage by n units.
func (r *reporter) add(n int) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done += n
	r.fn(Progress{Stage: r.stage, Done: r.done, Total: r.total})
}

func (r *reporter) set(stage Stage, done, total int) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stage, r.done, r.total = stage, done, total
	r.fn(Progress{Stage: stage, Done: done, Total: total})
}
