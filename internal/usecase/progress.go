package usecase

import (
	"sync"

	"github.com/semmidev/dbpull/internal/domain"
)

// Weights is each stage's share of overall progress.
type Weights struct {
	Backup int
	Dump   int
	Import int
}

var DefaultWeights = Weights{Backup: 33, Dump: 33, Import: 34}

func (w Weights) Sum() int {
	return w.Backup + w.Dump + w.Import
}

func (w Weights) of(stage domain.Stage) int {
	switch stage {
	case domain.StageBackup:
		return w.Backup
	case domain.StageDump:
		return w.Dump
	case domain.StageImport:
		return w.Import
	}
	return 0
}

func (w Weights) preceding(stage domain.Stage) int {
	switch stage {
	case domain.StageBackup, domain.StageValidate:
		return 0
	case domain.StageDump:
		return w.Backup
	case domain.StageImport:
		return w.Backup + w.Dump
	}
	return w.Sum()
}

// Overall maps an intra-stage percentage onto the whole job.
func Overall(stage domain.Stage, intra int, w Weights) int {
	intra = clamp(intra, 0, 100)
	overall := w.preceding(stage) + (intra*w.of(stage)+50)/100
	return clamp(overall, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Progress is the only writer to a job's sink. Percentages never go down.
type Progress struct {
	mu      sync.Mutex
	sink    domain.ProgressSink
	weights Weights
	logger  domain.Logger
	last    int
}

func NewProgress(sink domain.ProgressSink, weights Weights, logger domain.Logger) *Progress {
	return &Progress{sink: sink, weights: weights, logger: logger}
}

// Report emits message at the overall value of stage/intra, raised to the
// last emitted value if needed.
func (p *Progress) Report(stage domain.Stage, intra int, message string) {
	p.Emit(message, Overall(stage, intra, p.weights))
}

// Advance emits only when the overall value strictly increases.
func (p *Progress) Advance(stage domain.Stage, intra int, message string) bool {
	overall := Overall(stage, intra, p.weights)

	p.mu.Lock()
	defer p.mu.Unlock()

	if overall <= p.last {
		return false
	}
	p.send(message, overall)
	return true
}

func (p *Progress) Emit(message string, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.send(message, max(clamp(percent, 0, 100), p.last))
}

func (p *Progress) Last() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.last
}

func (p *Progress) send(message string, percent int) {
	p.last = percent
	if p.sink == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Warnf("Progress sink panicked: %v", r)
		}
	}()
	p.sink.OnProgress(message, percent)
}
