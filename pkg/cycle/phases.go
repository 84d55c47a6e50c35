package cycle

import "time"

// PhaseStats accumulates charge energy and diagnostics for one charging
// sub-phase. Created lazily on first entry into the phase; EndedAt and
// DurationSec are fixed on the first exit and never overwritten.
type PhaseStats struct {
	Label       Phase
	EnergyWh    float64
	StartedAt   time.Time
	EndedAt     time.Time
	DurationSec float64

	// Raw readings, kept for diagnostics only.
	Voltages []float64
	Currents []float64

	tempSum   float64
	tempCount int
}

func newPhaseStats(label Phase) *PhaseStats {
	return &PhaseStats{Label: label}
}

func (p *PhaseStats) open(now time.Time) {
	if p.StartedAt.IsZero() {
		p.StartedAt = now
	}
}

func (p *PhaseStats) close(now time.Time) {
	if !p.EndedAt.IsZero() || p.StartedAt.IsZero() {
		return
	}
	p.EndedAt = now
	p.DurationSec = now.Sub(p.StartedAt).Seconds()
}

func (p *PhaseStats) addTemp(celsius float64) {
	p.tempSum += celsius
	p.tempCount++
}

// AvgCelsius returns the average temperature observed during the phase.
// ok is false when no temperature reading has contributed yet; the
// average is undefined in that case and displays as "—".
func (p *PhaseStats) AvgCelsius() (avg float64, ok bool) {
	if p.tempCount == 0 {
		return 0, false
	}
	return p.tempSum / float64(p.tempCount), true
}
