package config

import (
	"time"

	"github.com/chargemon/chargemon/pkg/types"
)

type Config interface {
	// Cycle parameters, consumed once per charging cycle.
	TargetVoltageV() float64
	BatteryCapacityMah() int
	Vref() float64
	Iref() float64

	// SOCMinVoltageV is the voltage floor representing an empty cell for
	// the SOC estimate.
	SOCMinVoltageV() float64

	// SampleInterval is the nominal charger-sample cadence used for
	// energy integration.
	SampleInterval() time.Duration

	MQTTBroker() string
	ChargerTopic() string
	TemperatureTopic() string
	HistoryDBPath() string
	AllowNonRootAccess() bool
	SetAllowNonRootAccess(bool)

	CycleConfig() types.CycleConfig
	SetCycleConfig(types.CycleConfig)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
