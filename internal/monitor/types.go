// internal/monitor/types.go
package monitor

import (
	"time"

	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
)

// CoreResult is the raw health of one core.
type CoreResult struct {
	Core        string
	FrameStatus mailbox.FrameStatus
	Counter     uint32
}

// Result is a snapshot produced by one poll cycle.
type Result struct {
	DeviceID string
	At       time.Time

	// ErrorCode is mailbox.Code(Err). 0 means success.
	ErrorCode uint16

	Cores []CoreResult
	Err   error // non-nil means the poll cycle failed
}
