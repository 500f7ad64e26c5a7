package layout

// State is a phase of the layout state machine.
type State int

// States in the order a pass moves through them. The worker path skips
// StabilityCheck.
const (
	Idle State = iota
	StrategySelected
	Precalc
	StabilityCheck
	FinalStabilization
	Interactive
	Stopped
)

var stateNames = [...]string{
	Idle:               "idle",
	StrategySelected:   "strategy_selected",
	Precalc:            "precalc",
	StabilityCheck:     "stability_check",
	FinalStabilization: "final_stabilization",
	Interactive:        "interactive",
	Stopped:            "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Stabilizing reports whether live ticks render at the reduced cadence.
func (s State) Stabilizing() bool { return s == StabilityCheck }

// Strategy names where the silent pre-calculation runs.
type Strategy string

// Strategies.
const (
	InProcess Strategy = "in-process"
	Offload   Strategy = "worker"
)
