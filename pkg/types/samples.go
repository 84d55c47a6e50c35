package types

// ChargerSample is one reading from the charging controller.
// Timestamps are epoch milliseconds, as published by the rig.
type ChargerSample struct {
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	State       string  `json:"state"`
	TimestampMs int64   `json:"timestamp"`
}

// TemperatureSample is one reading from the temperature probe.
type TemperatureSample struct {
	Celsius     float64 `json:"celsius"`
	Fahrenheit  float64 `json:"fahrenheit"`
	TimestampMs int64   `json:"timestamp"`
}

// CycleConfig parameterizes one charging cycle. It is consumed once per
// cycle to seed the charging controller and the SOC estimator.
type CycleConfig struct {
	TargetVoltageV     float64 `json:"targetVoltageV"`
	BatteryCapacityMah int     `json:"batteryCapacityMah"`
	Vref               float64 `json:"vref"`
	Iref               float64 `json:"iref"`
}
