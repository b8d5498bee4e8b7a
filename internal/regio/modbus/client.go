// internal/regio/modbus/client.go
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Client reaches a chip through a Modbus bridge that maps chip registers
// onto holding registers one-to-one. A mailbox word spans two registers.
// Requests are serialized: the mailbox is a one-word FIFO.
type Client struct {
	mu      sync.Mutex
	handler io.Closer
	client  registerClient
	order   WordOrder
}

// registerClient is the subset of modbus.Client the adapter needs.
type registerClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// WordOrder selects which register of a pair holds the low half of a mailbox word.
type WordOrder string

const (
	LowWordFirst  WordOrder = "low_first"
	HighWordFirst WordOrder = "high_first"
)

// Config is the bridge transport configuration.
type Config struct {
	Kind      string // "tcp" or "rtu"
	Endpoint  string // host:port for tcp
	Port      string // serial device for rtu
	Baud      int
	UnitID    uint8
	Timeout   time.Duration
	WordOrder WordOrder
}

// New connects to the bridge.
func New(cfg Config) (*Client, error) {
	if cfg.WordOrder == "" {
		cfg.WordOrder = LowWordFirst
	}
	if cfg.WordOrder != LowWordFirst && cfg.WordOrder != HighWordFirst {
		return nil, fmt.Errorf("regio modbus: invalid word order %q", cfg.WordOrder)
	}

	switch cfg.Kind {
	case "tcp":
		if cfg.Endpoint == "" {
			return nil, errors.New("regio modbus: endpoint required")
		}
		h := modbus.NewTCPClientHandler(cfg.Endpoint)
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.UnitID
		if err := h.Connect(); err != nil {
			return nil, err
		}
		return newClient(h, modbus.NewClient(h), cfg.WordOrder), nil

	case "rtu":
		if cfg.Port == "" {
			return nil, errors.New("regio modbus: serial port required")
		}
		h := modbus.NewRTUClientHandler(cfg.Port)
		h.BaudRate = cfg.Baud
		h.DataBits = 8
		h.Parity = "N"
		h.StopBits = 1
		h.Timeout = cfg.Timeout
		h.SlaveId = cfg.UnitID
		if err := h.Connect(); err != nil {
			return nil, err
		}
		return newClient(h, modbus.NewClient(h), cfg.WordOrder), nil
	}
	return nil, fmt.Errorf("regio modbus: unknown kind %q", cfg.Kind)
}

func newClient(h io.Closer, c registerClient, order WordOrder) *Client {
	return &Client{handler: h, client: c, order: order}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ---- regio.Bus ----

func (c *Client) Read32(addr uint16) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.client.ReadHoldingRegisters(addr, 2)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("regio modbus: short response (%d bytes)", len(b))
	}
	return c.join(binary.BigEndian.Uint16(b), binary.BigEndian.Uint16(b[2:])), nil
}

func (c *Client) Write32(addr uint16, v uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r0, r1 := c.split(v)
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload, r0)
	binary.BigEndian.PutUint16(payload[2:], r1)

	_, err := c.client.WriteMultipleRegisters(addr, 2, payload)
	return err
}

func (c *Client) Read16(addr uint16) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := c.client.ReadHoldingRegisters(addr, 1)
	if err != nil {
		return 0, err
	}
	if len(b) != 2 {
		return 0, fmt.Errorf("regio modbus: short response (%d bytes)", len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *Client) Write16(addr uint16, v uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.client.WriteSingleRegister(addr, v)
	return err
}

func (c *Client) split(v uint32) (r0, r1 uint16) {
	if c.order == HighWordFirst {
		return uint16(v >> 16), uint16(v)
	}
	return uint16(v), uint16(v >> 16)
}

func (c *Client) join(r0, r1 uint16) uint32 {
	if c.order == HighWordFirst {
		return uint32(r0)<<16 | uint32(r1)
	}
	return uint32(r1)<<16 | uint32(r0)
}
