package cycle

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargemon/chargemon/pkg/types"
)

// DefaultSampleInterval is the nominal cadence of charger samples from
// the rig. Energy integration uses this configured constant rather than
// measured inter-arrival time.
const DefaultSampleInterval = time.Second

// Transition reports what one charger sample did to the machine. The
// caller uses ShouldLog as the logging gate for persisting the sample.
type Transition struct {
	State          State
	Phase          Phase
	PreviousPhase  Phase
	StartedLogging bool
	StoppedLogging bool
	PhaseChanged   bool
	ShouldLog      bool
}

// Machine tracks the charging-cycle lifecycle: the current controller
// state, whether telemetry logging is active, and per-phase energy
// accounting. It is the single owner of the cycle context; charger
// samples must be applied one at a time (the internal mutex is held for
// the full transition so two charger updates never interleave).
// Temperature samples only record the latest reading and may arrive
// concurrently.
type Machine struct {
	mu             sync.Mutex
	now            func() time.Time
	sampleInterval time.Duration

	current  State
	previous State
	rawState string

	loggingActive    bool
	loggingStartedAt time.Time

	phase Phase
	cc    *PhaseStats
	cv    *PhaseStats

	lastCelsius float64
	tempSeen    bool

	latestCharger types.ChargerSample
	hasCharger    bool
	latestTemp    types.TemperatureSample
}

// NewMachine creates a machine in the Idle state. sampleInterval is the
// nominal charger-sample cadence used for energy integration; zero means
// DefaultSampleInterval.
func NewMachine(sampleInterval time.Duration) *Machine {
	if sampleInterval <= 0 {
		sampleInterval = DefaultSampleInterval
	}
	return &Machine{
		now:            time.Now,
		sampleInterval: sampleInterval,
		current:        StateIdle,
		previous:       StateIdle,
		phase:          PhaseNone,
	}
}

// HandleCharger applies one charger sample: state normalization, the
// logging start/stop rules, phase open/close bookkeeping, and energy
// accumulation. It never fails on malformed input; unrecognized states
// carry no phase and do not alter the logging flag by themselves.
func (m *Machine) HandleCharger(s types.ChargerSample) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	newState := ParseState(s.State)
	tr := Transition{State: newState, PreviousPhase: m.phase}

	// Logging start/stop rules, in priority order. The Idle stop always
	// wins: it is the safety stop for a cycle in any condition.
	switch {
	case newState == StateIdle && m.loggingActive:
		m.loggingActive = false
		m.loggingStartedAt = time.Time{}
		tr.StoppedLogging = true
		logrus.WithField("previous", m.current.String()).Info("charger went Idle, logging stopped")
	case m.current == StateDetect && newState != StateDetect && !m.loggingActive:
		m.loggingActive = true
		m.loggingStartedAt = now
		tr.StartedLogging = true
		logrus.WithField("state", newState.String()).Info("battery detected, logging started")
	case !m.loggingActive && newState != StateUnknown &&
		newState != StateIdle && newState != StateDetect && newState != StateWaitCfg:
		// Safety net for a missed Detect sample.
		m.loggingActive = true
		m.loggingStartedAt = now
		tr.StartedLogging = true
		logrus.WithField("state", newState.String()).
			Warn("fallback start: expected Detect exit was not observed")
	}

	newPhase := newState.Phase()
	if newPhase != m.phase {
		if open := m.phaseStats(m.phase); open != nil {
			open.close(now)
		}
		if newPhase != PhaseNone {
			m.ensurePhase(newPhase).open(now)
		}
		m.phase = newPhase
		tr.PhaseChanged = true
		logrus.Debugf("charging phase changed to %q (state %s)", newPhase, newState)
	}

	if m.loggingActive && newPhase != PhaseNone {
		ps := m.ensurePhase(newPhase)
		ps.EnergyWh += s.Voltage * s.Current * m.sampleInterval.Hours()
		ps.Voltages = append(ps.Voltages, s.Voltage)
		ps.Currents = append(ps.Currents, s.Current)
		// Never count a missing temperature reading as zero: the phase
		// average only includes ticks after the first probe reading.
		if m.tempSeen {
			ps.addTemp(m.lastCelsius)
		}
	}

	m.previous = m.current
	m.current = newState
	m.rawState = s.State
	m.latestCharger = s
	m.hasCharger = true

	tr.Phase = newPhase
	tr.ShouldLog = m.loggingActive
	return tr
}

// HandleTemperature records the latest probe reading and reports whether
// the sample should be persisted.
func (m *Machine) HandleTemperature(s types.TemperatureSample) (shouldLog bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastCelsius = s.Celsius
	m.tempSeen = true
	m.latestTemp = s
	return m.loggingActive
}

// TotalEnergyWh is the whole-cycle energy, recomputed from the phases.
func (m *Machine) TotalEnergyWh() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalEnergyLocked()
}

func (m *Machine) totalEnergyLocked() float64 {
	var total float64
	if m.cc != nil {
		total += m.cc.EnergyWh
	}
	if m.cv != nil {
		total += m.cv.EnergyWh
	}
	return total
}

// Reset discards the cycle context and both phase accumulators. Called
// on the external "Done & Clear" action.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = StateIdle
	m.previous = StateIdle
	m.rawState = ""
	m.loggingActive = false
	m.loggingStartedAt = time.Time{}
	m.phase = PhaseNone
	m.cc = nil
	m.cv = nil
	m.lastCelsius = 0
	m.tempSeen = false
	m.latestCharger = types.ChargerSample{}
	m.hasCharger = false
	m.latestTemp = types.TemperatureSample{}
	logrus.Info("cycle context cleared")
}

// LatestVoltage returns the most recent charger voltage, if any.
func (m *Machine) LatestVoltage() (v float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestCharger.Voltage, m.hasCharger
}

// Snapshot returns a copy of the observable machine state for the status
// endpoint. SOC is left for the caller, which owns the voltage policy.
func (m *Machine) Snapshot() types.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := types.Status{
		State:         m.current.String(),
		Phase:         string(m.phase),
		LoggingActive: m.loggingActive,
		TotalEnergyWh: m.totalEnergyLocked(),
	}
	if m.current == StateUnknown {
		st.RawState = m.rawState
	}
	if !m.loggingStartedAt.IsZero() {
		st.LoggingStartedMs = m.loggingStartedAt.UnixMilli()
	}
	if m.hasCharger {
		s := m.latestCharger
		st.LatestCharger = &s
	}
	if m.tempSeen {
		s := m.latestTemp
		st.LatestTemp = &s
	}
	for _, ps := range []*PhaseStats{m.cc, m.cv} {
		if ps == nil {
			continue
		}
		avg, ok := ps.AvgCelsius()
		p := types.PhaseStatus{
			Label:       string(ps.Label),
			EnergyWh:    ps.EnergyWh,
			DurationSec: ps.DurationSec,
			AvgCelsius:  avg,
			HasAvgTemp:  ok,
			Samples:     len(ps.Voltages),
			Open:        !ps.StartedAt.IsZero() && ps.EndedAt.IsZero(),
		}
		if !ps.StartedAt.IsZero() {
			p.StartedAtMs = ps.StartedAt.UnixMilli()
		}
		if !ps.EndedAt.IsZero() {
			p.EndedAtMs = ps.EndedAt.UnixMilli()
		}
		st.Phases = append(st.Phases, p)
	}
	return st
}

func (m *Machine) phaseStats(p Phase) *PhaseStats {
	switch p {
	case PhaseCC:
		return m.cc
	case PhaseCV:
		return m.cv
	}
	return nil
}

func (m *Machine) ensurePhase(p Phase) *PhaseStats {
	switch p {
	case PhaseCC:
		if m.cc == nil {
			m.cc = newPhaseStats(PhaseCC)
		}
		return m.cc
	case PhaseCV:
		if m.cv == nil {
			m.cv = newPhaseStats(PhaseCV)
		}
		return m.cv
	}
	return nil
}
