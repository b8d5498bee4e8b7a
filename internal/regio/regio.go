// internal/regio/regio.go
package regio

import "fmt"

// Channel moves one 32-bit word through a mailbox register.
// Each call is exactly one fragment of mailbox I/O.
type Channel interface {
	Read32(addr uint16) (uint32, error)
	Write32(addr uint16, value uint32) error
}

// Registers accesses ordinary 16-bit chip registers.
type Registers interface {
	Read16(addr uint16) (uint16, error)
	Write16(addr uint16, value uint16) error
}

// Bus is a transport exposing both register kinds of one chip.
type Bus interface {
	Channel
	Registers
	Close() error
}

// UpdateBits performs a read-modify-write of the bits in mask.
// The write is skipped when the register already holds the value.
func UpdateBits(r Registers, addr, mask, value uint16) error {
	old, err := r.Read16(addr)
	if err != nil {
		return fmt.Errorf("regio: read 0x%04x: %w", addr, err)
	}
	v := old&^mask | value&mask
	if v == old {
		return nil
	}
	if err := r.Write16(addr, v); err != nil {
		return fmt.Errorf("regio: write 0x%04x: %w", addr, err)
	}
	return nil
}

// Field is a bit field of one 16-bit register.
type Field struct {
	Reg  uint16
	Mask uint16
}

// Set drives every bit of the field high (on) or low.
func (f Field) Set(r Registers, on bool) error {
	var v uint16
	if on {
		v = f.Mask
	}
	return UpdateBits(r, f.Reg, f.Mask, v)
}

// Get reports whether any bit of the field is set.
func (f Field) Get(r Registers) (bool, error) {
	v, err := r.Read16(f.Reg)
	if err != nil {
		return false, err
	}
	return v&f.Mask != 0, nil
}
