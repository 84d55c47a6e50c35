package types

// PhaseStatus is a read-only view of one charging sub-phase.
// This struct is shared between the daemon and client packages.
type PhaseStatus struct {
	Label       string  `json:"label"`
	EnergyWh    float64 `json:"energyWh"`
	StartedAtMs int64   `json:"startedAtMs,omitempty"`
	EndedAtMs   int64   `json:"endedAtMs,omitempty"`
	DurationSec float64 `json:"durationSec"`
	AvgCelsius  float64 `json:"avgCelsius"`
	HasAvgTemp  bool    `json:"hasAvgTemp"`
	Samples     int     `json:"samples"`
	Open        bool    `json:"open"`
}

// Status is the daemon status snapshot returned by GET /status.
type Status struct {
	State            string             `json:"state"`
	RawState         string             `json:"rawState,omitempty"`
	Phase            string             `json:"phase"`
	LoggingActive    bool               `json:"loggingActive"`
	LoggingStartedMs int64              `json:"loggingStartedMs,omitempty"`
	TotalEnergyWh    float64            `json:"totalEnergyWh"`
	SOCPercent       float64            `json:"socPercent"`
	Phases           []PhaseStatus      `json:"phases"`
	LatestCharger    *ChargerSample     `json:"latestCharger,omitempty"`
	LatestTemp       *TemperatureSample `json:"latestTemp,omitempty"`
}
