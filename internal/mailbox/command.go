// internal/mailbox/command.go
package mailbox

import "fmt"

// Command is a DSP command id as carried in the preamble fragment.
type Command uint8

const (
	GetCounter     Command = 0x1
	GetKcsResults  Command = 0x4
	GetKcsSetup    Command = 0x6
	SetKcsSetup    Command = 0x7
	GetFrameStatus Command = 0x9
	GetRevision    Command = 0xA
	ClockStop      Command = 0xB
	ClockRestart   Command = 0xC
)

// Descriptor describes the framing a command needs.
// HasSetupData implies HasParams.
type Descriptor struct {
	// HasParams: the message carries an offset+size parameter fragment
	// and the reply payload is copied into a caller-sized byte buffer.
	HasParams bool
	// HasSetupData: the message carries a write payload in data fragments.
	HasSetupData bool
	// HasReplyData: the caller expects a reply payload, not just a status.
	HasReplyData bool
}

type commandInfo struct {
	name string
	desc Descriptor
}

// commands is read-only, indexed by command id.
var commands = [...]commandInfo{
	GetCounter:     {"GET_COUNTER", Descriptor{HasReplyData: true}},
	GetKcsResults:  {"GET_KCS_RSLTS", Descriptor{HasParams: true, HasReplyData: true}},
	GetKcsSetup:    {"GET_KCS_SETUP", Descriptor{HasParams: true, HasReplyData: true}},
	SetKcsSetup:    {"SET_KCS_SETUP", Descriptor{HasParams: true, HasSetupData: true, HasReplyData: true}},
	GetFrameStatus: {"GET_FRAME_STATUS", Descriptor{HasReplyData: true}},
	GetRevision:    {"GET_REVISION", Descriptor{HasReplyData: true}},
	ClockStop:      {"CLK_STOP", Descriptor{}},
	ClockRestart:   {"CLK_RESTART", Descriptor{}},
}

// Commands lists every supported command in id order.
func Commands() []Command {
	var out []Command
	for id, ci := range commands {
		if ci.name != "" {
			out = append(out, Command(id))
		}
	}
	return out
}

// Valid reports whether c is a supported command.
func (c Command) Valid() bool {
	return int(c) < len(commands) && commands[c].name != ""
}

// Descriptor returns the framing descriptor of c.
func (c Command) Descriptor() (Descriptor, bool) {
	if !c.Valid() {
		return Descriptor{}, false
	}
	return commands[c].desc, true
}

func (c Command) String() string {
	if !c.Valid() {
		return fmt.Sprintf("CMD(0x%x)", uint8(c))
	}
	return commands[c].name
}

// ParseCommand resolves a command by its wire name (e.g. "GET_COUNTER").
func ParseCommand(name string) (Command, error) {
	for id, ci := range commands {
		if ci.name != "" && ci.name == name {
			return Command(id), nil
		}
	}
	return 0, fmt.Errorf("mailbox: unknown command %q", name)
}

// FragmentCount returns the frame length a message for c declares in its
// preamble: the parameter fragment, the data fragments and the trailing
// fragment. Commands without parameters send the preamble alone and declare 0.
func FragmentCount(c Command, setLen int) int {
	d, ok := c.Descriptor()
	if !ok || !d.HasParams {
		return 0
	}
	n := 2
	if d.HasSetupData {
		n += DivCeil(setLen, FragmentSize)
	}
	return n
}

// ranged reports whether c is subject to the KCS field-width limits.
func (c Command) ranged() bool {
	return c == GetKcsSetup || c == SetKcsSetup
}
