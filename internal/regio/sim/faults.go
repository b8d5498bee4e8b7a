// internal/regio/sim/faults.go
package sim

import (
	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
)

func (c *Chip) with(addr uint16, fn func(*core)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if co, ok := c.cores[addr]; ok {
		fn(co)
	}
}

// ---- fault injection ----

// Busy makes the next n mailbox reads return a non-idle, non-preamble word.
func (c *Chip) Busy(addr uint16, n int) {
	c.with(addr, func(co *core) { co.busy = n })
}

// FailSetups makes the next n SetKcsSetup messages fail with an execution error.
func (c *Chip) FailSetups(addr uint16, n int) {
	c.with(addr, func(co *core) { co.failSet = n })
}

// DropReplies makes the core swallow the next n replies.
func (c *Chip) DropReplies(addr uint16, n int) {
	c.with(addr, func(co *core) { co.dropReply = n })
}

// CorruptNextReply damages the trailing fragment of the next reply that has one.
func (c *Chip) CorruptNextReply(addr uint16) {
	c.with(addr, func(co *core) { co.corrupt = true })
}

// ReplyWith makes the next message fail with status s.
func (c *Chip) ReplyWith(addr uint16, s mailbox.ReplyStatus) {
	c.with(addr, func(co *core) { co.nextStatus = s })
}

// SetIOError makes every register access fail with err; nil restores the bus.
func (c *Chip) SetIOError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ioErr = err
}

// SetFrameStatus overrides the frame status word of a core.
func (c *Chip) SetFrameStatus(addr uint16, s mailbox.FrameStatus) {
	c.with(addr, func(co *core) { co.status = s })
}

// SetRevision overrides the revision word of a core.
func (c *Chip) SetRevision(addr uint16, rev uint32) {
	c.with(addr, func(co *core) { co.rev = rev })
}

// ---- inspection ----

// KCS returns a copy of the configuration store written so far.
func (c *Chip) KCS(addr uint16) []byte {
	var out []byte
	c.with(addr, func(co *core) {
		out = append([]byte(nil), co.kcs[:co.kcsLen]...)
	})
	return out
}

// History returns the messages processed by a core.
func (c *Chip) History(addr uint16) []Exchange {
	var out []Exchange
	c.with(addr, func(co *core) {
		out = append(out, co.history...)
	})
	return out
}

// Writes returns every raw word written to a mailbox.
func (c *Chip) Writes(addr uint16) []uint32 {
	var out []uint32
	c.with(addr, func(co *core) {
		out = append(out, co.writes...)
	})
	return out
}

// Reg returns a 16-bit register value.
func (c *Chip) Reg(addr uint16) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[addr]
}

// Reset clears recorded traffic and faults of every core, keeping the KCS.
func (c *Chip) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, co := range c.cores {
		co.rx, co.tx = nil, nil
		co.writes, co.history = nil, nil
		co.busy, co.failSet, co.dropReply = 0, 0, 0
		co.corrupt = false
		co.nextStatus = mailbox.StatusOK
	}
}
