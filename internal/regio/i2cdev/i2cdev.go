// internal/regio/i2cdev/i2cdev.go
package i2cdev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// Register framing on the I2C bus:
//
//	address: 16-bit big-endian
//	mailbox value: 4 bytes little-endian (one fragment)
//	ordinary register value: 2 bytes big-endian

const flagRead uint16 = 0x0001 // I2C_M_RD

type message struct {
	flags uint16
	buf   []byte
}

// transport performs one combined I2C transaction (repeated start between messages).
type transport interface {
	transfer(addr uint16, msgs ...message) error
	close() error
}

// Device is one chip on an I2C bus. It implements regio.Bus.
type Device struct {
	mu   sync.Mutex
	tr   transport
	addr uint16
}

// Config selects the bus device node and the 7-bit chip address.
type Config struct {
	Bus     string // e.g. /dev/i2c-1
	Address uint16
}

func newDevice(tr transport, addr uint16) *Device {
	return &Device{tr: tr, addr: addr}
}

// Open opens the bus node and binds to the chip address.
func Open(cfg Config) (*Device, error) {
	if cfg.Bus == "" {
		return nil, errors.New("i2cdev: bus required")
	}
	if cfg.Address == 0 || cfg.Address > 0x7F {
		return nil, fmt.Errorf("i2cdev: invalid address 0x%x", cfg.Address)
	}
	tr, err := openBus(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("i2cdev: open %s: %w", cfg.Bus, err)
	}
	return newDevice(tr, cfg.Address), nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tr.close()
}

// ---- regio.Bus ----

func (d *Device) Read32(reg uint16) (uint32, error) {
	var val [4]byte
	if err := d.read(reg, val[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(val[:]), nil
}

func (d *Device) Write32(reg uint16, v uint32) error {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf, reg)
	binary.LittleEndian.PutUint32(buf[2:], v)
	return d.write(buf)
}

func (d *Device) Read16(reg uint16) (uint16, error) {
	var val [2]byte
	if err := d.read(reg, val[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(val[:]), nil
}

func (d *Device) Write16(reg uint16, v uint16) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf, reg)
	binary.BigEndian.PutUint16(buf[2:], v)
	return d.write(buf)
}

func (d *Device) read(reg uint16, val []byte) error {
	var a [2]byte
	binary.BigEndian.PutUint16(a[:], reg)

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tr.transfer(d.addr,
		message{buf: a[:]},
		message{flags: flagRead, buf: val},
	)
}

func (d *Device) write(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tr.transfer(d.addr, message{buf: buf})
}
