// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

// helper to build a device quickly
func device(id string, slot *uint16) DeviceConfig {
	return DeviceConfig{
		ID:   id,
		Chip: "nau8360",
		Transport: TransportConfig{
			Kind:    TransportI2C,
			Bus:     "/dev/i2c-1",
			Address: 0x10,
		},
		StatusSlot: slot,
	}
}

func slot(v uint16) *uint16 { return &v }

func withStatus(devs ...DeviceConfig) *Config {
	return &Config{
		DSP: DSPConfig{
			Status:  &StatusConfig{Endpoint: "127.0.0.1:1502", UnitID: 1},
			Devices: devs,
		},
	}
}

// ---- tests ----

func TestValidate_OK(t *testing.T) {
	cfg := withStatus(device("a", slot(0)), device("b", slot(1)), device("c", nil))

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"no devices", func(c *Config) { c.DSP.Devices = nil }, "no devices"},
		{"duplicate id", func(c *Config) { c.DSP.Devices[1].ID = "a" }, "duplicate id"},
		{"missing id", func(c *Config) { c.DSP.Devices[0].ID = "" }, "without id"},
		{"unknown chip", func(c *Config) { c.DSP.Devices[0].Chip = "nau9999" }, "unknown chip"},
		{"unknown transport", func(c *Config) { c.DSP.Devices[0].Transport.Kind = "spi" }, "unknown kind"},
		{"i2c without bus", func(c *Config) { c.DSP.Devices[0].Transport.Bus = "" }, "bus required"},
		{"i2c address", func(c *Config) { c.DSP.Devices[0].Transport.Address = 0x80 }, "address"},
		{"tcp without endpoint", func(c *Config) {
			c.DSP.Devices[0].Transport = TransportConfig{Kind: TransportModbusTCP}
		}, "endpoint required"},
		{"rtu without port", func(c *Config) {
			c.DSP.Devices[0].Transport = TransportConfig{Kind: TransportModbusRTU}
		}, "port required"},
		{"word order", func(c *Config) {
			c.DSP.Devices[0].Transport = TransportConfig{Kind: TransportSim, WordOrder: "middle"}
		}, "word_order"},
		{"duplicate core", func(c *Config) {
			c.DSP.Devices[0].Cores = []CoreConfig{{Name: "l", Mailbox: 0xF000}, {Name: "l", Mailbox: 0xF002}}
		}, "duplicate core"},
		{"duplicate mailbox", func(c *Config) {
			c.DSP.Devices[0].Cores = []CoreConfig{{Name: "l", Mailbox: 0xF000}, {Name: "r", Mailbox: 0xF000}}
		}, "used twice"},
		{"zero mute mask", func(c *Config) { c.DSP.Devices[0].Mute = &FieldConfig{Reg: 0x13} }, "mute mask"},
		{"zero bypass mask", func(c *Config) { c.DSP.Devices[0].Bypass = &FieldConfig{Reg: 0x1A} }, "bypass mask"},
		{"chunk too small", func(c *Config) { c.DSP.Devices[0].Protocol.ChunkSize = 3 }, "chunk_size"},
		{"chunk too large", func(c *Config) { c.DSP.Devices[0].Protocol.ChunkSize = 97 }, "chunk_size"},
		{"negative attempts", func(c *Config) { c.DSP.Devices[0].Protocol.ChunkAttempts = -1 }, "retry budget"},
		{"negative settle", func(c *Config) { c.DSP.Devices[0].Protocol.SettleMs = intPtr(-1) }, "negative delay"},
		{"negative poll", func(c *Config) { c.DSP.Devices[0].Poll.IntervalMs = -5 }, "poll interval"},
		{"non ascii name", func(c *Config) { c.DSP.Devices[0].DeviceName = "ampé" }, "ASCII"},
		{"slot collision", func(c *Config) { c.DSP.Devices[1].StatusSlot = slot(0) }, "collision"},
		{"slot range", func(c *Config) { c.DSP.Devices[0].StatusSlot = slot(MaxDevices) }, "out of range"},
		{"slot without status", func(c *Config) { c.DSP.Status = nil }, "no status memory"},
		{"status without endpoint", func(c *Config) { c.DSP.Status.Endpoint = "" }, "endpoint required"},
		{"too many devices", func(c *Config) {
			c.DSP.Devices = make([]DeviceConfig, MaxDevices+1)
		}, "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := withStatus(device("a", slot(0)), device("b", slot(1)))
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("error %q does not contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := withStatus(device("a", nil))

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DSP.FirmwareDir != "" || cfg.DSP.Devices[0].Protocol.ChunkSize != 0 {
		t.Fatalf("Validate mutated configuration")
	}
}
