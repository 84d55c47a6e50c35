// Package ingest delivers charger and temperature samples from the rig
// to the daemon as two independent bounded streams.
package ingest

import "github.com/chargemon/chargemon/pkg/types"

// Default MQTT topics the rig publishes on, roughly once per second each.
const (
	DefaultChargerTopic     = "chargemon/charger"
	DefaultTemperatureTopic = "chargemon/temperature"
)

// Source is a push-style sample subscription. Each stream is a bounded
// channel; a slow consumer causes drops at the source, never blocking.
type Source interface {
	Charger() <-chan types.ChargerSample
	Temperature() <-chan types.TemperatureSample
	Close() error
}
