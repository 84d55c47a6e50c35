package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargemon/chargemon/pkg/config"
	"github.com/chargemon/chargemon/pkg/cycle"
	"github.com/chargemon/chargemon/pkg/events"
	"github.com/chargemon/chargemon/pkg/history"
	"github.com/chargemon/chargemon/pkg/ingest"
	"github.com/chargemon/chargemon/pkg/retention"
	"github.com/chargemon/chargemon/pkg/types"
)

// Monitor owns the per-cycle state machine, the history store, and the
// retention engine, and runs one consumer loop per ingest stream. All
// handlers receive it explicitly; there is no process-wide singleton.
type Monitor struct {
	conf    config.Config
	machine *cycle.Machine
	store   history.Store
	engine  *retention.Engine
	writer  *historyWriter
	hub     *events.EventHub
	wg      sync.WaitGroup
}

func NewMonitor(conf config.Config, store history.Store) *Monitor {
	return &Monitor{
		conf:    conf,
		machine: cycle.NewMachine(conf.SampleInterval()),
		store:   store,
		engine:  retention.NewEngine(store),
		writer:  newHistoryWriter(store),
		hub:     events.NewEventHub(),
	}
}

// Events exposes the SSE hub for the /events endpoint.
func (m *Monitor) Events() *events.EventHub {
	return m.hub
}

// Run consumes both sample streams until ctx is cancelled. Charger
// samples are applied strictly one at a time in arrival order; phase
// bookkeeping and the fallback-start rule are order-dependent.
// Temperature samples run on their own loop and only touch the latest
// reading.
func (m *Monitor) Run(ctx context.Context, src ingest.Source) {
	m.wg.Add(2)
	go m.consumeCharger(ctx, src.Charger())
	go m.consumeTemperature(ctx, src.Temperature())
}

func (m *Monitor) consumeCharger(ctx context.Context, ch <-chan types.ChargerSample) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-ch:
			if !ok {
				return
			}
			tr := m.machine.HandleCharger(sample)
			if tr.ShouldLog {
				m.writer.enqueue(history.CollectionCharger, makeRecord(sample.TimestampMs, sample))
			}
			m.publishTransition(tr, sample.TimestampMs)
		}
	}
}

func (m *Monitor) consumeTemperature(ctx context.Context, ch <-chan types.TemperatureSample) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-ch:
			if !ok {
				return
			}
			if m.machine.HandleTemperature(sample) {
				m.writer.enqueue(history.CollectionTemperature, makeRecord(sample.TimestampMs, sample))
			}
		}
	}
}

func (m *Monitor) publishTransition(tr cycle.Transition, timestampMs int64) {
	if tr.StartedLogging || tr.StoppedLogging {
		m.hub.Publish(events.CycleLogging, events.CycleLoggingEvent{
			Active: tr.ShouldLog,
			State:  tr.State.String(),
			Ts:     timestampMs,
		})
	}
	if tr.PhaseChanged {
		m.hub.Publish(events.CyclePhase, events.CyclePhaseEvent{
			From: string(tr.PreviousPhase),
			To:   string(tr.Phase),
			Ts:   timestampMs,
		})
	}
}

// makeRecord wraps a sample for persistence, attaching the structured
// time derived from its timestamp.
func makeRecord(timestampMs int64, sample any) history.Record {
	value, err := json.Marshal(sample)
	if err != nil {
		// Samples are plain structs; this cannot realistically fail.
		value = []byte("{}")
	}
	return history.Record{
		TimestampMs: timestampMs,
		RecordedAt:  time.UnixMilli(timestampMs),
		Value:       value,
	}
}

// Status assembles the observable daemon state.
func (m *Monitor) Status() types.Status {
	st := m.machine.Snapshot()
	if v, ok := m.machine.LatestVoltage(); ok {
		st.SOCPercent = cycle.SOC(v, m.conf.SOCMinVoltageV(), m.conf.TargetVoltageV())
	}
	return st
}

// Cleanup runs one retention pass against the given collection.
func (m *Monitor) Cleanup(collection string, req types.RetentionRequest) types.RetentionResult {
	return m.engine.Run(collection, req)
}

// ClearCycle implements the "Done & Clear" action: remove all records of
// the finished cycle from both collections, then reset the cycle
// context and both phase accumulators.
func (m *Monitor) ClearCycle() types.RetentionResult {
	// Age mode with a 1 ms horizon covers every record written so far.
	req := types.RetentionRequest{Mode: types.RetentionModeAge, OlderThanMs: 1}

	combined := types.RetentionResult{Success: true}
	for _, collection := range []string{history.CollectionCharger, history.CollectionTemperature} {
		res := m.engine.Run(collection, req)
		combined.Deleted += res.Deleted
		if !res.Success {
			combined.Success = false
			combined.Error = res.Error
		}
	}
	combined.Message = fmt.Sprintf("cycle cleared, %d records removed", combined.Deleted)

	m.machine.Reset()
	logrus.Infof("cycle cleared: %d history records removed", combined.Deleted)
	return combined
}

// History returns the newest records of a collection for display.
func (m *Monitor) History(collection string, limit int) ([]history.Record, error) {
	return m.store.QueryLatest(collection, limit)
}

// Shutdown waits for the consumer loops to finish, then flushes the
// async writer.
func (m *Monitor) Shutdown() {
	m.wg.Wait()
	m.writer.close()
}
