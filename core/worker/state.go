package worker

// State is a consumption loop lifecycle state.
type State int

const (
	StateStarting State = iota
	StateConnected
	StateReconnecting
	StateStopped
)

var stateNames = []string{"STARTING", "CONNECTED", "RECONNECTING", "STOPPED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// StateTopic is the event bus topic carrying StateChanged events.
const StateTopic = "worker.state"

// StateChanged is published on every transition, including the initial one
// into STARTING (where From == To).
type StateChanged struct {
	From   State
	To     State
	Reason string
}

func (StateChanged) EventType() string { return StateTopic }
