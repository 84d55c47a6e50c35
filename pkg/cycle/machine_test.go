package cycle

import (
	"testing"
	"time"

	"github.com/chargemon/chargemon/pkg/types"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func testMachine() (*Machine, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	m := NewMachine(time.Second)
	m.now = clock.Now
	return m, clock
}

func charger(state string) types.ChargerSample {
	return types.ChargerSample{Voltage: 4.0, Current: 1.0, State: state}
}

func TestLoggingStartsOnDetectExit(t *testing.T) {
	m, clock := testMachine()

	tr := m.HandleCharger(charger("Detect"))
	if tr.StartedLogging || tr.ShouldLog {
		t.Fatalf("Detect alone must not start logging, got %+v", tr)
	}

	clock.Advance(time.Second)
	ccTime := clock.Now()
	tr = m.HandleCharger(charger("cc"))
	if !tr.StartedLogging {
		t.Fatalf("exit from Detect must start logging, got %+v", tr)
	}
	if !tr.ShouldLog {
		t.Fatal("sample that starts logging must itself be logged")
	}
	if m.cc == nil || !m.cc.StartedAt.Equal(ccTime) {
		t.Fatalf("cc phase must open at the second sample's processing time, got %+v", m.cc)
	}

	// A second cc sample must not start again.
	clock.Advance(time.Second)
	tr = m.HandleCharger(charger("CC"))
	if tr.StartedLogging {
		t.Fatal("logging already active, must not re-trigger start")
	}
}

func TestFallbackStart(t *testing.T) {
	tests := []struct {
		name      string
		state     string
		wantStart bool
	}{
		{name: "cc without detect", state: "CC", wantStart: true},
		{name: "cv without detect", state: "cv", wantStart: true},
		{name: "trans without detect", state: "Trans", wantStart: true},
		{name: "done without detect", state: "Done", wantStart: true},
		{name: "waitcfg excluded", state: "WaitCfg", wantStart: false},
		{name: "idle excluded", state: "Idle", wantStart: false},
		{name: "unknown excluded", state: "garbage", wantStart: false},
		{name: "empty state excluded", state: "", wantStart: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := testMachine()
			tr := m.HandleCharger(charger(tt.state))
			if tr.StartedLogging != tt.wantStart {
				t.Errorf("state %q: StartedLogging = %t, want %t", tt.state, tr.StartedLogging, tt.wantStart)
			}
		})
	}
}

func TestLoggingStopsOnIdleOnly(t *testing.T) {
	m, clock := testMachine()

	m.HandleCharger(charger("Detect"))
	clock.Advance(time.Second)
	m.HandleCharger(charger("cc"))

	// Non-idle states keep logging active, including unrecognized ones.
	for _, state := range []string{"Trans", "cv", "???", "Done", "WaitCfg"} {
		clock.Advance(time.Second)
		tr := m.HandleCharger(charger(state))
		if tr.StoppedLogging || !tr.ShouldLog {
			t.Fatalf("state %q must not stop logging, got %+v", state, tr)
		}
	}

	clock.Advance(time.Second)
	tr := m.HandleCharger(charger("IDLE"))
	if !tr.StoppedLogging {
		t.Fatal("Idle must stop logging")
	}
	if tr.ShouldLog {
		t.Fatal("the Idle sample itself must not be logged")
	}
}

func TestUnknownStateMidCycleFailsOpen(t *testing.T) {
	m, clock := testMachine()
	m.HandleCharger(charger("Detect"))
	clock.Advance(time.Second)
	m.HandleCharger(charger("cc"))

	clock.Advance(time.Second)
	tr := m.HandleCharger(charger("bogus"))
	if !tr.ShouldLog {
		t.Fatal("unknown state must not interrupt logging of a cycle in progress")
	}
	if tr.Phase != PhaseNone {
		t.Fatalf("unknown state has no phase, got %q", tr.Phase)
	}
}

func TestPhaseOpenCloseBookkeeping(t *testing.T) {
	m, clock := testMachine()

	m.HandleCharger(charger("Detect"))
	clock.Advance(time.Second)
	ccStart := clock.Now()
	m.HandleCharger(charger("cc"))

	// Trans merges with cc: no phase change.
	clock.Advance(time.Second)
	tr := m.HandleCharger(charger("Trans"))
	if tr.PhaseChanged {
		t.Fatal("cc -> Trans must not change the phase")
	}

	clock.Advance(time.Second)
	cvStart := clock.Now()
	tr = m.HandleCharger(charger("cv"))
	if !tr.PhaseChanged {
		t.Fatal("Trans -> cv must change the phase")
	}
	if tr.PreviousPhase != PhaseCC || tr.Phase != PhaseCV {
		t.Fatalf("transition must report cc -> cv, got %q -> %q", tr.PreviousPhase, tr.Phase)
	}
	if m.cc.EndedAt.IsZero() {
		t.Fatal("cc phase must close when cv opens")
	}
	wantDur := cvStart.Sub(ccStart).Seconds()
	if m.cc.DurationSec != wantDur {
		t.Fatalf("cc duration = %v, want %v", m.cc.DurationSec, wantDur)
	}
	if !m.cv.StartedAt.Equal(cvStart) {
		t.Fatalf("cv must open at %v, got %v", cvStart, m.cv.StartedAt)
	}

	clock.Advance(time.Second)
	m.HandleCharger(charger("Done"))
	if m.cv.EndedAt.IsZero() {
		t.Fatal("cv phase must close on Done")
	}

	// Closed phases keep their original end time.
	cvEnd := m.cv.EndedAt
	clock.Advance(time.Second)
	m.HandleCharger(charger("cv"))
	clock.Advance(time.Second)
	m.HandleCharger(charger("Done"))
	if !m.cv.EndedAt.Equal(cvEnd) {
		t.Fatal("a closed phase's end time must not be overwritten")
	}
}

func TestResetClearsCycleContext(t *testing.T) {
	m, clock := testMachine()
	m.HandleCharger(charger("Detect"))
	clock.Advance(time.Second)
	m.HandleCharger(charger("cc"))
	m.HandleTemperature(types.TemperatureSample{Celsius: 30})

	m.Reset()

	st := m.Snapshot()
	if st.LoggingActive || st.TotalEnergyWh != 0 || len(st.Phases) != 0 {
		t.Fatalf("reset must return the machine to its initial state, got %+v", st)
	}
	if st.State != "Idle" {
		t.Fatalf("state after reset = %q, want Idle", st.State)
	}
}

func TestSnapshotReportsOpenPhase(t *testing.T) {
	m, clock := testMachine()
	m.HandleCharger(charger("Detect"))
	clock.Advance(time.Second)
	m.HandleCharger(charger("cc"))

	st := m.Snapshot()
	if len(st.Phases) != 1 {
		t.Fatalf("want 1 phase, got %d", len(st.Phases))
	}
	if !st.Phases[0].Open || st.Phases[0].Label != "cc" {
		t.Fatalf("cc phase must be open, got %+v", st.Phases[0])
	}
	if !st.LoggingActive || st.LoggingStartedMs == 0 {
		t.Fatalf("snapshot must carry the logging flag and start time, got %+v", st)
	}
}
