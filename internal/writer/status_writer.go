// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/dsp-mailbox/internal/status"
)

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
// No logic, no state, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// deviceStatusWriter is the concrete implementation used by the daemon.
type deviceStatusWriter struct {
	plan *StatusPlan
	cli  endpointClient

	needFull bool
	last     []uint16 // live slots as last written
	nameRegs []uint16
}

// NewDeviceStatusWriter builds a status writer if status is enabled for the device.
// A nil plan means status is disabled.
func NewDeviceStatusWriter(plan *StatusPlan, cli endpointClient) (*deviceStatusWriter, bool) {
	if plan == nil {
		return nil, false
	}

	return &deviceStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		nameRegs: status.EncodeDeviceName(plan.DeviceName),
	}, true
}

// WriteStatus delivers a device status snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.plan == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return fmt.Errorf("status writer: missing client for endpoint %s", sw.plan.Endpoint)
	}

	baseAddr := sw.baseAddr()
	regs := status.Encode(s)

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		copy(regs[status.SlotDeviceNameStart:], sw.nameRegs)

		if err := sw.cli.WriteRegisters(sw.plan.UnitID, baseAddr, regs); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = append([]uint16(nil), regs[:status.SlotLiveEnd+1]...)
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: one write per run of changed live slots
	// ------------------------------------------------------------
	var errs []string

	for i := 0; i <= status.SlotLiveEnd; {
		if sw.last[i] == regs[i] {
			i++
			continue
		}
		j := i
		for j+1 <= status.SlotLiveEnd && sw.last[j+1] != regs[j+1] {
			j++
		}

		run := regs[i : j+1]
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, baseAddr+uint16(i), run); err != nil {
			errs = append(errs, fmt.Sprintf("slots %d-%d write failed: %v", i, j, err))
		} else {
			copy(sw.last[i:], run)
		}
		i = j + 1
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt: re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}
