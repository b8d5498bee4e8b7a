// internal/writer/device_status_writer_test.go
package writer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	cfg "github.com/tamzrod/dsp-mailbox/internal/config"
	"github.com/tamzrod/dsp-mailbox/internal/status"
)

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeEndpointClient struct {
	writes []writeCall
	fail   bool

	lastRegsAddr uint16
	lastRegs     []uint16
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail {
		return errors.New("endpoint down")
	}
	f.writes = append(f.writes, writeCall{unitID: unitID, addr: addr, regs: regs})
	f.lastRegsAddr = addr
	f.lastRegs = regs
	return nil
}

func newWriter(t *testing.T, cli *fakeEndpointClient, slot uint16) *deviceStatusWriter {
	t.Helper()
	plan := &StatusPlan{
		DeviceID:   "amp",
		Endpoint:   "status-endpoint",
		UnitID:     1,
		BaseSlot:   slot,
		DeviceName: "DEV-01",
	}
	sw, enabled := NewDeviceStatusWriter(plan, cli)
	if !enabled {
		t.Fatalf("status writer should be enabled")
	}
	return sw
}

func TestDisabledWithoutPlan(t *testing.T) {
	if _, enabled := NewDeviceStatusWriter(nil, &fakeEndpointClient{}); enabled {
		t.Fatalf("status writer should be disabled")
	}
}

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newWriter(t, cli, 0)

	// ---- first write: FULL ASSERT ----
	first := status.Snapshot{Health: status.HealthOK}

	if err := sw.WriteStatus(first); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf("expected full block write (%d regs), got %d", status.SlotsPerDevice, len(cli.lastRegs))
	}

	// Verify device name encoding EXACTLY
	got := cli.lastRegs[status.SlotDeviceNameStart : status.SlotDeviceNameEnd+1]
	if diff := cmp.Diff(status.EncodeDeviceName("DEV-01"), got); diff != "" {
		t.Fatalf("device name mismatch (-want +got):\n%s", diff)
	}

	// ---- second write: INCREMENTAL ONLY ----
	second := status.Snapshot{
		Health:         status.HealthError,
		LastErrorCode:  7,
		SecondsInError: 1,
	}

	if err := sw.WriteStatus(second); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	if len(cli.lastRegs) == status.SlotsPerDevice {
		t.Fatalf("device name should not be rewritten on incremental update")
	}
	// slots 0..2 changed together: one run
	want := writeCall{unitID: 1, addr: 0, regs: []uint16{status.HealthError, 7, 1}}
	if diff := cmp.Diff(want, cli.writes[len(cli.writes)-1], cmp.AllowUnexported(writeCall{})); diff != "" {
		t.Fatalf("incremental write (-want +got):\n%s", diff)
	}
}

func TestSecondsInErrorResetOnRecovery(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newWriter(t, cli, 2)

	errSnap := status.Snapshot{Health: status.HealthError, LastErrorCode: 42, SecondsInError: 3}
	if err := sw.WriteStatus(errSnap); err != nil {
		t.Fatalf("error snapshot write failed: %v", err)
	}

	// same health and code, seconds reset
	okSnap := status.Snapshot{Health: status.HealthError, LastErrorCode: 42}
	if err := sw.WriteStatus(okSnap); err != nil {
		t.Fatalf("recovery snapshot write failed: %v", err)
	}

	expectedAddr := uint16(2*status.SlotsPerDevice + status.SlotSecondsInError)
	if cli.lastRegsAddr != expectedAddr {
		t.Fatalf("unexpected write addr: got=%d want=%d", cli.lastRegsAddr, expectedAddr)
	}
	if len(cli.lastRegs) != 1 || cli.lastRegs[0] != 0 {
		t.Fatalf("seconds_in_error not reset: %v", cli.lastRegs)
	}
}

func TestCoreSlotsWrittenAsRuns(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newWriter(t, cli, 0)

	s := status.Snapshot{Health: status.HealthOK}
	if err := sw.WriteStatus(s); err != nil {
		t.Fatal(err)
	}
	cli.writes = nil

	// core 1: frame status both words changed; counter unchanged
	s.Cores[1] = status.CoreSnapshot{FrameStatus: 0x00010001}
	if err := sw.WriteStatus(s); err != nil {
		t.Fatal(err)
	}

	base := uint16(status.SlotCoreStart + status.SlotsPerCore)
	want := []writeCall{{unitID: 1, addr: base + status.CoreSlotFrameHigh, regs: []uint16{1, 1}}}
	if diff := cmp.Diff(want, cli.writes, cmp.AllowUnexported(writeCall{})); diff != "" {
		t.Fatalf("writes (-want +got):\n%s", diff)
	}

	// nothing changed: no writes
	cli.writes = nil
	if err := sw.WriteStatus(s); err != nil {
		t.Fatal(err)
	}
	if len(cli.writes) != 0 {
		t.Fatalf("unchanged snapshot produced %d writes", len(cli.writes))
	}
}

func TestFailureForcesFullReassert(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newWriter(t, cli, 0)

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatal(err)
	}

	cli.fail = true
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err == nil {
		t.Fatal("expected error")
	}

	cli.fail = false
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err != nil {
		t.Fatal(err)
	}
	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf("expected full re-assert after failure, got %d regs", len(cli.lastRegs))
	}
}

func TestBuildStatusPlan(t *testing.T) {
	slot := uint16(3)
	st := &cfg.StatusConfig{Endpoint: "127.0.0.1:1502", UnitID: 9}

	if _, ok := BuildStatusPlan(cfg.DeviceConfig{ID: "amp"}, st); ok {
		t.Fatal("status without slot should be disabled")
	}
	if _, ok := BuildStatusPlan(cfg.DeviceConfig{ID: "amp", StatusSlot: &slot}, nil); ok {
		t.Fatal("status without memory should be disabled")
	}

	plan, ok := BuildStatusPlan(cfg.DeviceConfig{ID: "amp", StatusSlot: &slot}, st)
	if !ok {
		t.Fatal("status should be enabled")
	}
	want := &StatusPlan{DeviceID: "amp", Endpoint: "127.0.0.1:1502", UnitID: 9, BaseSlot: 3, DeviceName: "amp"}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Fatalf("plan (-want +got):\n%s", diff)
	}
}
