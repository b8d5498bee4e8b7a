// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
)

// MaxDevices bounds the device list (status memory geometry).
const MaxDevices = 64

var knownChips = map[string]bool{
	"nau8310": true,
	"nau8360": true,
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	d := cfg.DSP

	if len(d.Devices) == 0 {
		return errors.New("no devices configured")
	}
	if len(d.Devices) > MaxDevices {
		return fmt.Errorf("%d devices configured, at most %d allowed", len(d.Devices), MaxDevices)
	}

	if d.Status != nil && d.Status.Endpoint == "" {
		return errors.New("status: endpoint required")
	}

	ids := make(map[string]bool)
	slotOwner := make(map[uint16]string)

	for _, dev := range d.Devices {
		if dev.ID == "" {
			return errors.New("device without id")
		}
		if ids[dev.ID] {
			return fmt.Errorf("device %q: duplicate id", dev.ID)
		}
		ids[dev.ID] = true

		if !knownChips[dev.Chip] {
			return fmt.Errorf("device %q: unknown chip %q", dev.ID, dev.Chip)
		}

		if err := validateTransport(dev.Transport); err != nil {
			return fmt.Errorf("device %q: transport: %w", dev.ID, err)
		}

		// cores: unique names and mailboxes
		names := make(map[string]bool)
		mailboxes := make(map[uint16]bool)
		for _, c := range dev.Cores {
			if c.Name == "" {
				return fmt.Errorf("device %q: core without name", dev.ID)
			}
			if names[c.Name] {
				return fmt.Errorf("device %q: duplicate core %q", dev.ID, c.Name)
			}
			if mailboxes[c.Mailbox] {
				return fmt.Errorf("device %q: mailbox 0x%04x used twice", dev.ID, c.Mailbox)
			}
			names[c.Name] = true
			mailboxes[c.Mailbox] = true
		}

		if dev.Mute != nil && dev.Mute.Mask == 0 {
			return fmt.Errorf("device %q: mute mask is zero", dev.ID)
		}
		if dev.Bypass != nil && dev.Bypass.Mask == 0 {
			return fmt.Errorf("device %q: bypass mask is zero", dev.ID)
		}

		p := dev.Protocol
		if p.ChunkSize != 0 && (p.ChunkSize < 4 || p.ChunkSize > 96) {
			return fmt.Errorf("device %q: chunk_size %d outside 4..96", dev.ID, p.ChunkSize)
		}
		if p.ChunkAttempts < 0 || p.IdleRetries < 0 {
			return fmt.Errorf("device %q: negative retry budget", dev.ID)
		}
		if (p.IdleDelayUs != nil && *p.IdleDelayUs < 0) || (p.SettleMs != nil && *p.SettleMs < 0) {
			return fmt.Errorf("device %q: negative delay", dev.ID)
		}
		if dev.Poll.IntervalMs < 0 {
			return fmt.Errorf("device %q: negative poll interval", dev.ID)
		}

		// device_name sanity (ASCII only)
		for i := 0; i < len(dev.DeviceName); i++ {
			if dev.DeviceName[i] > 0x7F {
				return fmt.Errorf("device %q: device_name must contain ASCII characters only", dev.ID)
			}
		}

		// status is opt-in
		if dev.StatusSlot == nil {
			continue
		}
		if d.Status == nil {
			return fmt.Errorf("device %q: status_slot is set but no status memory is configured", dev.ID)
		}
		if *dev.StatusSlot >= MaxDevices {
			return fmt.Errorf("device %q: status_slot %d out of range", dev.ID, *dev.StatusSlot)
		}
		if prev, exists := slotOwner[*dev.StatusSlot]; exists {
			return fmt.Errorf("status_slot collision: slot=%d used by devices %q and %q", *dev.StatusSlot, prev, dev.ID)
		}
		slotOwner[*dev.StatusSlot] = dev.ID
	}

	return nil
}

func validateTransport(t TransportConfig) error {
	switch t.Kind {
	case TransportI2C:
		if t.Bus == "" {
			return errors.New("i2c bus required")
		}
		if t.Address == 0 || t.Address > 0x7F {
			return fmt.Errorf("i2c address 0x%x invalid", t.Address)
		}
	case TransportModbusTCP:
		if t.Endpoint == "" {
			return errors.New("modbus-tcp endpoint required")
		}
	case TransportModbusRTU:
		if t.Port == "" {
			return errors.New("modbus-rtu port required")
		}
	case TransportSim:
	default:
		return fmt.Errorf("unknown kind %q", t.Kind)
	}

	switch t.WordOrder {
	case "", "low_first", "high_first":
	default:
		return fmt.Errorf("unknown word_order %q", t.WordOrder)
	}
	if t.TimeoutMs < 0 || t.Baud < 0 {
		return errors.New("negative timeout or baud")
	}
	return nil
}
