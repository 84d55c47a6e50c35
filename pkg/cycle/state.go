package cycle

import "strings"

// State is the normalized charging-controller state. Raw state strings
// from the rig vary in case, so they are normalized exactly once at the
// ingestion boundary via ParseState.
type State int

const (
	StateUnknown State = iota
	StateIdle
	StateDetect
	StateCC
	StateTrans
	StateCV
	StateDone
	StateWaitCfg
)

var stateNames = map[State]string{
	StateUnknown: "Unknown",
	StateIdle:    "Idle",
	StateDetect:  "Detect",
	StateCC:      "CC",
	StateTrans:   "Trans",
	StateCV:      "CV",
	StateDone:    "Done",
	StateWaitCfg: "WaitCfg",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseState normalizes a raw controller state string. Unrecognized
// strings (including empty ones) map to StateUnknown; the caller keeps
// the raw string around for diagnostics.
func ParseState(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "idle":
		return StateIdle
	case "detect":
		return StateDetect
	case "cc":
		return StateCC
	case "trans":
		return StateTrans
	case "cv":
		return StateCV
	case "done":
		return StateDone
	case "waitcfg", "wait_cfg":
		return StateWaitCfg
	}
	return StateUnknown
}

// Phase is the charging sub-phase used for energy attribution.
type Phase string

const (
	PhaseNone Phase = "none"
	PhaseCC   Phase = "cc"
	PhaseCV   Phase = "cv"
)

// Phase maps a state to its energy-accounting phase. Trans is merged
// with CC: the controller reports it briefly while ramping between CC
// and CV and the energy belongs to the constant-current leg.
func (s State) Phase() Phase {
	switch s {
	case StateCC, StateTrans:
		return PhaseCC
	case StateCV:
		return PhaseCV
	}
	return PhaseNone
}
