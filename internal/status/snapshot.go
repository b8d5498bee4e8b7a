// internal/status/snapshot.go
package status

// CoreSnapshot is the published state of one DSP core.
type CoreSnapshot struct {
	State       uint16 // firmware.State
	FrameStatus uint32
	Counter     uint32 // only the low word is published
}

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	Cores [MaxCores]CoreSnapshot
}
