// internal/mailbox/command_test.go
package mailbox

import (
	"errors"
	"fmt"
	"testing"
)

func TestCommandTable(t *testing.T) {
	cmds := Commands()
	if len(cmds) != 8 {
		t.Fatalf("expected 8 commands, got %d", len(cmds))
	}
	for _, c := range cmds {
		d, ok := c.Descriptor()
		if !ok {
			t.Fatalf("%s: no descriptor", c)
		}
		if d.HasSetupData && !d.HasParams {
			t.Fatalf("%s: setup data without params", c)
		}
		got, err := ParseCommand(c.String())
		if err != nil || got != c {
			t.Fatalf("ParseCommand(%q)=%v,%v", c.String(), got, err)
		}
	}
}

func TestCommand_Unknown(t *testing.T) {
	c := Command(0x3)
	if c.Valid() {
		t.Fatal("0x3 should not be valid")
	}
	if c.String() != "CMD(0x3)" {
		t.Fatalf("String=%q", c.String())
	}
	if _, err := ParseCommand("NOPE"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFragmentCount(t *testing.T) {
	tests := []struct {
		cmd    Command
		setLen int
		want   int
	}{
		{GetCounter, 0, 0},
		{ClockRestart, 0, 0},
		{GetKcsResults, 4, 2},
		{GetKcsSetup, 1023, 2},
		{SetKcsSetup, 1, 3},
		{SetKcsSetup, 96, 26},
		{SetKcsSetup, 1023, 258},
	}
	for _, tt := range tests {
		if got := FragmentCount(tt.cmd, tt.setLen); got != tt.want {
			t.Fatalf("FragmentCount(%s, %d)=%d, want %d", tt.cmd, tt.setLen, got, tt.want)
		}
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want uint16
	}{
		{nil, CodeOK},
		{errors.New("x"), CodeGeneric},
		{&IOError{Op: "read", Addr: 0xF000, Err: errors.New("bus")}, CodeIO},
		{invalid("x"), CodeInvalidRequest},
		{fmt.Errorf("wrap: %w", ErrNotResponding), CodeNotResponding},
		{&ProtocolError{Kind: ErrFrameIntegrity}, CodeFrameIntegrity},
		{&ProtocolError{Kind: ErrFragmentCountMismatch}, CodeFragmentCount},
		{&CommandError{Cmd: GetFrameStatus, Err: ErrAlgorithmNotReady}, CodeAlgorithmNotOK},
		{&CommandError{Cmd: SetKcsSetup, Err: StatusExecutionError}, 0x12},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Fatalf("Code(%v)=%d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFrameStatus(t *testing.T) {
	s := FrameAlgoOK | FrameOVP | FrameStatus(0x30)<<audRateShift | FrameStatus(0x12)<<snsrRateShift
	if !s.AlgoOK() {
		t.Fatal("AlgoOK=false")
	}
	if s.AudioRate() != 0x30 || s.SensorRate() != 0x12 {
		t.Fatalf("rates %x %x", s.AudioRate(), s.SensorRate())
	}
	if s.String() != "ALGO_OK|OVP" {
		t.Fatalf("String=%q", s.String())
	}
	if FrameStatus(0).String() != "-" {
		t.Fatal("empty status string")
	}
}
