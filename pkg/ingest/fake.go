package ingest

import "github.com/chargemon/chargemon/pkg/types"

// FakeSource is an in-memory Source for tests.
type FakeSource struct {
	charger     chan types.ChargerSample
	temperature chan types.TemperatureSample
}

var _ Source = (*FakeSource)(nil)

func NewFakeSource() *FakeSource {
	return &FakeSource{
		charger:     make(chan types.ChargerSample, streamBuffer),
		temperature: make(chan types.TemperatureSample, streamBuffer),
	}
}

func (f *FakeSource) PushCharger(s types.ChargerSample) { f.charger <- s }

func (f *FakeSource) PushTemperature(s types.TemperatureSample) { f.temperature <- s }

func (f *FakeSource) Charger() <-chan types.ChargerSample { return f.charger }

func (f *FakeSource) Temperature() <-chan types.TemperatureSample { return f.temperature }

func (f *FakeSource) Close() error {
	close(f.charger)
	close(f.temperature)
	return nil
}
