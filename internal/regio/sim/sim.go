// internal/regio/sim/sim.go
package sim

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
)

// Chip simulates a DSP-equipped amplifier: one or more mailbox registers
// speaking the fragment protocol plus a plain 16-bit register file.
// It implements regio.Bus and is safe for concurrent use.
type Chip struct {
	mu    sync.Mutex
	cores map[uint16]*core
	regs  map[uint16]uint16
	ioErr error
}

// Exchange records one message processed by a core.
type Exchange struct {
	Cmd    mailbox.Command
	Offset uint16
	Size   uint16
	Status mailbox.ReplyStatus
}

type core struct {
	rx      []mailbox.Fragment // message being received
	tx      []mailbox.Fragment // reply being read back
	writes  []uint32
	history []Exchange

	kcs     [mailbox.MaxKCSOffset + mailbox.MaxKCSLength]byte
	kcsLen  int
	counter uint32
	status  mailbox.FrameStatus
	rev     uint32

	// faults
	busy       int
	failSet    int
	dropReply  int
	corrupt    bool
	nextStatus mailbox.ReplyStatus
}

// New creates a chip with one core per mailbox address. Cores start with
// ALGO_OK set.
func New(mailboxes ...uint16) *Chip {
	c := &Chip{
		cores: make(map[uint16]*core),
		regs:  make(map[uint16]uint16),
	}
	for _, a := range mailboxes {
		c.cores[a] = &core{status: mailbox.FrameAlgoOK, rev: 0x00010000}
	}
	return c
}

func (c *Chip) Close() error { return nil }

// ---- regio.Bus ----

func (c *Chip) Read32(addr uint16) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ioErr != nil {
		return 0, c.ioErr
	}
	co, ok := c.cores[addr]
	if !ok {
		return 0, errors.New("sim: no mailbox at address")
	}
	if co.busy > 0 {
		co.busy--
		return 0, nil
	}
	if len(co.rx) > 0 {
		// mid-message
		return 0, nil
	}
	if len(co.tx) > 0 {
		f := co.tx[0]
		co.tx = co.tx[1:]
		return f.Word(), nil
	}
	return mailbox.IdleWord, nil
}

func (c *Chip) Write32(addr uint16, v uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ioErr != nil {
		return c.ioErr
	}
	co, ok := c.cores[addr]
	if !ok {
		return errors.New("sim: no mailbox at address")
	}
	co.writes = append(co.writes, v)

	f := mailbox.FragmentOf(v)
	if len(co.rx) == 0 {
		if _, _, ok := mailbox.ParseMessagePreamble(f); !ok {
			// garbage outside a message is dropped
			return nil
		}
		co.tx = nil
	}
	co.rx = append(co.rx, f)

	_, length, _ := mailbox.ParseMessagePreamble(co.rx[0])
	if len(co.rx) == 1+length {
		co.process(co.rx)
		co.rx = nil
	}
	return nil
}

func (c *Chip) Read16(addr uint16) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ioErr != nil {
		return 0, c.ioErr
	}
	return c.regs[addr], nil
}

func (c *Chip) Write16(addr uint16, v uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ioErr != nil {
		return c.ioErr
	}
	c.regs[addr] = v
	return nil
}

// ---- DSP behaviour ----

func (co *core) process(frags []mailbox.Fragment) {
	m, err := mailbox.DecodeMessage(frags)
	ex := Exchange{Cmd: m.Cmd, Offset: m.Offset, Size: m.Size}

	reply := func(payload []byte) {
		co.tx = mailbox.EncodeReply(payload)
	}
	fail := func(s mailbox.ReplyStatus) {
		ex.Status = s
		co.tx = []mailbox.Fragment{mailbox.EncodeStatus(s)}
	}

	switch {
	case err != nil:
		fail(mailbox.StatusMsgIntegrityError)
	case !m.Cmd.Valid():
		fail(mailbox.StatusCommandNotExist)
	case co.nextStatus != mailbox.StatusOK:
		fail(co.nextStatus)
		co.nextStatus = mailbox.StatusOK
	default:
		co.execute(m, reply, fail)
	}

	if co.corrupt && len(co.tx) > 1 {
		co.tx[len(co.tx)-1][0] ^= 0xFF
		co.corrupt = false
	}
	if co.dropReply > 0 {
		co.dropReply--
		co.tx = nil
	}
	co.history = append(co.history, ex)
}

func (co *core) execute(m mailbox.Message, reply func([]byte), fail func(mailbox.ReplyStatus)) {
	word := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}

	end := int(m.Offset) + int(m.Size)
	switch m.Cmd {
	case mailbox.GetCounter:
		co.counter++
		reply(word(co.counter))
	case mailbox.GetFrameStatus:
		reply(word(uint32(co.status)))
	case mailbox.GetRevision:
		reply(word(co.rev))
	case mailbox.GetKcsResults:
		reply(word(0))
	case mailbox.GetKcsSetup:
		if end > len(co.kcs) {
			fail(mailbox.StatusMsgTooLong)
			return
		}
		reply(co.kcs[m.Offset:end])
	case mailbox.SetKcsSetup:
		if co.failSet > 0 {
			co.failSet--
			fail(mailbox.StatusExecutionError)
			return
		}
		if end > len(co.kcs) {
			fail(mailbox.StatusMsgTooLong)
			return
		}
		copy(co.kcs[m.Offset:], m.Data)
		if end > co.kcsLen {
			co.kcsLen = end
		}
		reply(nil)
	case mailbox.ClockStop:
		co.status |= mailbox.FrameClkStop
		reply(nil)
	case mailbox.ClockRestart:
		co.status &^= mailbox.FrameClkStop
		reply(nil)
	}
}
