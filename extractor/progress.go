package extractor

import (
	"time"

	"lubimyczytac-exporter/internal/types"
)

// Progress logs a status line on the first item, every Nth item and the last
// one, with throughput and, when the total is known, an ETA.
type Progress struct {
	logger   types.Logger
	label    string
	every    int
	total    int
	start    time.Time
	now      func() time.Time
	reported int
}

// NewProgress starts a reporter. total is 0 when the item count is unknown.
func NewProgress(logger types.Logger, label string, every, total int) *Progress {
	if every <= 0 {
		every = 1
	}
	return &Progress{
		logger: logger,
		label:  label,
		every:  every,
		total:  total,
		start:  time.Now(),
		now:    time.Now,
	}
}

// Tick records that done items are complete
func (p *Progress) Tick(done int) {
	if p.shouldReport(done) {
		p.report(done)
	}
}

// Finish emits the final line unless Tick already reported it
func (p *Progress) Finish(done int) {
	if done > 0 && p.reported != done {
		p.report(done)
	}
}

func (p *Progress) shouldReport(done int) bool {
	return done == 1 || done%p.every == 0 || (p.total > 0 && done == p.total)
}

// Rate returns items per elapsed second
func (p *Progress) Rate(done int) float64 {
	elapsed := p.now().Sub(p.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(done) / elapsed
}

// ETA is (elapsed / done) * remaining
func (p *Progress) ETA(done int) time.Duration {
	if done <= 0 || p.total <= done {
		return 0
	}
	elapsed := p.now().Sub(p.start)
	return time.Duration(float64(elapsed) / float64(done) * float64(p.total-done)).Round(time.Second)
}

func (p *Progress) report(done int) {
	p.reported = done
	if p.total > 0 {
		p.logger.Infof("%s: %d/%d (%.2f/s, ETA %s)", p.label, done, p.total, p.Rate(done), p.ETA(done))
		return
	}
	p.logger.Infof("%s: %d (%.2f/s)", p.label, done, p.Rate(done))
}
