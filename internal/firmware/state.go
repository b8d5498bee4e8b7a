// internal/firmware/state.go
package firmware

// State is the firmware state of one DSP core.
type State uint8

const (
	StateIdle State = iota
	StateCheckingStatus
	StateLoading
	StateReady
	StateFailed
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateCheckingStatus: "checking-status",
	StateLoading:        "loading",
	StateReady:          "ready",
	StateFailed:         "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// CoreState is the last known firmware state of a core.
type CoreState struct {
	State State
	// Size is the byte size of the loaded blob, valid in StateReady.
	Size int
	// Err is the failure cause, valid in StateFailed.
	Err error
}
