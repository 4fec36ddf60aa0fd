package retrieval

// State is a stage of a pipeline run.
type State int32

const (
	StateIdle State = iota
	StateRetrieving
	StateEnriching
	StateScoring
	StateFormatting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateRetrieving: "retrieving",
	StateEnriching:  "enriching",
	StateScoring:    "scoring",
	StateFormatting: "formatting",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Monitor observes pipeline state transitions.
// Calls are made synchronously from the running request.
type Monitor interface {
	StateChanged(from, to State)
}

// MonitorFunc adapts a function to Monitor.
type MonitorFunc func(from, to State)

// StateChanged calls f.
func (f MonitorFunc) StateChanged(from, to State) { f(from, to) }

type noopMonitor struct{}

func (noopMonitor) StateChanged(_, _ State) {}
