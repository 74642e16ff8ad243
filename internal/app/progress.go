package app

import "github.com/mmrzaf/cardbase/internal/domain"

// progressPublisher feeds a bounded channel without ever blocking the build
// and without ever letting the published fraction move backward. When the
// consumer lags, updates are dropped; the next one carries a value at least
// as large, so monotonicity survives the drops.
type progressPublisher struct {
	ch   chan domain.Progress
	last float64
}

func newProgressPublisher(buffer int) *progressPublisher {
	return &progressPublisher{ch: make(chan domain.Progress, buffer)}
}

func (p *progressPublisher) publish(fraction float64, status string) {
	if fraction < p.last {
		fraction = p.last
	}
	if fraction > 1 {
		fraction = 1
	}
	p.last = fraction

	select {
	case p.ch <- domain.Progress{Fraction: fraction, Status: status}:
	default:
	}
}

func (p *progressPublisher) close() { close(p.ch) }

// phase boundaries of the overall [0,1] range. Downloads and imports split
// their span evenly across sources.
const (
	phaseSchemaEnd   = 0.02
	phaseDownloadEnd = 0.45
	phaseImportEnd   = 0.80
	phaseIndexEnd    = 0.90
	phaseSearchEnd   = 0.98
)

// span maps a within-phase fraction into the phase's slice of the overall
// range.
func span(lo, hi, frac float64) float64 {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return lo + (hi-lo)*frac
}
