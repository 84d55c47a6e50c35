package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/chargemon/chargemon/pkg/config"
	"github.com/chargemon/chargemon/pkg/history"
	"github.com/chargemon/chargemon/pkg/ingest"
	"github.com/chargemon/chargemon/pkg/types"
)

func testConfig() config.Config {
	return config.NewFileFromConfig(&config.RawFileConfig{}, "")
}

// runMonitor pushes the given samples through a monitor and returns it
// after all processing and persistence has finished.
func runMonitor(t *testing.T, store history.Store, push func(*ingest.FakeSource)) *Monitor {
	t.Helper()

	m := NewMonitor(testConfig(), store)
	src := ingest.NewFakeSource()
	m.Run(context.Background(), src)

	push(src)

	src.Close()
	m.Shutdown()
	return m
}

// waitFor polls the monitor status until cond holds. The two sample
// streams are consumed on independent goroutines, so tests that mix
// streams must observe the effect of one before pushing to the other.
func waitFor(t *testing.T, m *Monitor, cond func(types.Status) bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond(m.Status()) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("monitor did not reach expected state in time")
}

func TestLoggingGatePersistsOnlyWhileActive(t *testing.T) {
	store := history.NewMemoryStore()

	runMonitor(t, store, func(src *ingest.FakeSource) {
		src.PushCharger(types.ChargerSample{State: "Idle", TimestampMs: 1000})
		src.PushCharger(types.ChargerSample{State: "Detect", TimestampMs: 2000})
		src.PushCharger(types.ChargerSample{Voltage: 4.0, Current: 1.0, State: "cc", TimestampMs: 3000})
		src.PushCharger(types.ChargerSample{Voltage: 4.1, Current: 1.0, State: "cc", TimestampMs: 4000})
		src.PushCharger(types.ChargerSample{State: "Idle", TimestampMs: 5000})
	})

	recs, err := store.QueryLatest(history.CollectionCharger, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("persisted %d charger records, want 2 (only while logging active)", len(recs))
	}
	if recs[0].TimestampMs != 3000 || recs[1].TimestampMs != 4000 {
		t.Fatalf("persisted wrong samples: %+v", recs)
	}
	if recs[0].RecordedAt.UnixMilli() != 3000 {
		t.Fatalf("record must carry the structured time derived from its timestamp, got %v", recs[0].RecordedAt)
	}
}

func TestTemperatureGatedBySameFlag(t *testing.T) {
	store := history.NewMemoryStore()
	m := NewMonitor(testConfig(), store)
	src := ingest.NewFakeSource()
	m.Run(context.Background(), src)

	// Before logging starts: dropped. Wait until the reading has been
	// consumed so it cannot race with the gate opening below.
	src.PushTemperature(types.TemperatureSample{Celsius: 25, TimestampMs: 1000})
	waitFor(t, m, func(st types.Status) bool { return st.LatestTemp != nil })

	src.PushCharger(types.ChargerSample{State: "Detect", TimestampMs: 2000})
	src.PushCharger(types.ChargerSample{Voltage: 4.0, Current: 1.0, State: "cc", TimestampMs: 3000})
	waitFor(t, m, func(st types.Status) bool { return st.LoggingActive })

	// After: persisted.
	src.PushTemperature(types.TemperatureSample{Celsius: 26, TimestampMs: 4000})

	src.Close()
	m.Shutdown()

	recs, err := store.QueryLatest(history.CollectionTemperature, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].TimestampMs != 4000 {
		t.Fatalf("temperature records = %+v, want only the post-start sample", recs)
	}
}

func TestStatusIncludesSOC(t *testing.T) {
	store := history.NewMemoryStore()

	m := runMonitor(t, store, func(src *ingest.FakeSource) {
		src.PushCharger(types.ChargerSample{Voltage: 3.6, Current: 1.0, State: "cc", TimestampMs: 1000})
	})

	st := m.Status()
	// Default policy: floor 3.0V, target 4.2V; 3.6V sits at 50%.
	if st.SOCPercent < 49.9 || st.SOCPercent > 50.1 {
		t.Fatalf("soc = %v, want 50", st.SOCPercent)
	}
	if !st.LoggingActive {
		t.Fatal("fallback start must have activated logging")
	}
}

func TestClearCycleRemovesHistoryAndResets(t *testing.T) {
	store := history.NewMemoryStore()
	m := NewMonitor(testConfig(), store)
	src := ingest.NewFakeSource()
	m.Run(context.Background(), src)

	src.PushCharger(types.ChargerSample{State: "Detect", TimestampMs: 1000})
	src.PushCharger(types.ChargerSample{Voltage: 4.0, Current: 1.0, State: "cc", TimestampMs: 2000})
	// The temperature stream is consumed independently; only push once
	// the gate is observably open so the sample is always persisted.
	waitFor(t, m, func(st types.Status) bool { return st.LoggingActive })
	src.PushTemperature(types.TemperatureSample{Celsius: 30, TimestampMs: 2500})
	src.PushCharger(types.ChargerSample{Voltage: 4.0, Current: 0.9, State: "cv", TimestampMs: 3000})

	src.Close()
	m.Shutdown()

	res := m.ClearCycle()
	if !res.Success || res.Deleted != 3 {
		t.Fatalf("clear result = %+v, want success with 3 records removed", res)
	}

	st := m.Status()
	if st.LoggingActive || st.TotalEnergyWh != 0 || len(st.Phases) != 0 {
		t.Fatalf("cycle context must be reset, got %+v", st)
	}

	recs, _ := store.QueryLatest(history.CollectionCharger, 10)
	if len(recs) != 0 {
		t.Fatalf("charger history must be empty after clear, got %d records", len(recs))
	}
}
