// internal/dsp/builder.go
package dsp

import (
	"fmt"
	"log/slog"
	"time"

	cfg "github.com/tamzrod/dsp-mailbox/internal/config"
	"github.com/tamzrod/dsp-mailbox/internal/firmware"
	"github.com/tamzrod/dsp-mailbox/internal/kcs"
	"github.com/tamzrod/dsp-mailbox/internal/regio"
	"github.com/tamzrod/dsp-mailbox/internal/regio/i2cdev"
	rmodbus "github.com/tamzrod/dsp-mailbox/internal/regio/modbus"
	"github.com/tamzrod/dsp-mailbox/internal/regio/sim"
	"github.com/tamzrod/dsp-mailbox/internal/session"
)

// Build constructs a Device from a validated, normalized device config.
// The transport is opened once (fail fast at startup).
// extra KCS options (e.g. a progress callback) apply after the configured ones.
func Build(dc cfg.DeviceConfig, firmwareDir string, log *slog.Logger, extra ...kcs.Option) (*Device, error) {
	cores, err := coreSpecs(dc)
	if err != nil {
		return nil, err
	}

	mailboxes := make([]uint16, len(cores))
	for i, c := range cores {
		mailboxes[i] = c.Mailbox
	}

	bus, err := OpenBus(dc.Transport, mailboxes)
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", dc.ID, err)
	}

	p := dc.Protocol
	sopts := []session.Option{session.WithIdleRetries(p.IdleRetries)}
	if p.IdleDelayUs != nil {
		sopts = append(sopts, session.WithIdleDelay(time.Duration(*p.IdleDelayUs)*time.Microsecond))
	}
	kopts := []kcs.Option{}
	if p.ChunkSize != 0 {
		kopts = append(kopts, kcs.WithChunkSize(p.ChunkSize))
	}
	if p.ChunkAttempts != 0 {
		kopts = append(kopts, kcs.WithAttempts(p.ChunkAttempts))
	}
	kopts = append(kopts, extra...)
	settle := time.Duration(cfg.DefaultSettleMs) * time.Millisecond
	if p.SettleMs != nil {
		settle = time.Duration(*p.SettleMs) * time.Millisecond
	}

	d, err := New(bus, Config{
		ID:             dc.ID,
		Cores:          cores,
		Source:         firmware.DirSource{Dir: firmwareDir},
		Mute:           field(dc.Mute),
		Bypass:         field(dc.Bypass),
		SessionOptions: sopts,
		KCSOptions:     kopts,
		Settle:         settle,
		Logger:         log,
	})
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return d, nil
}

// OpenBus opens the register transport of one chip.
// mailboxes is only used by the simulator.
func OpenBus(t cfg.TransportConfig, mailboxes []uint16) (regio.Bus, error) {
	timeout := time.Duration(t.TimeoutMs) * time.Millisecond

	switch t.Kind {
	case cfg.TransportI2C:
		d, err := i2cdev.Open(i2cdev.Config{Bus: t.Bus, Address: t.Address})
		if err != nil {
			return nil, err
		}
		return d, nil
	case cfg.TransportModbusTCP:
		return modbusBus(rmodbus.Config{
			Kind:      "tcp",
			Endpoint:  t.Endpoint,
			UnitID:    t.UnitID,
			Timeout:   timeout,
			WordOrder: rmodbus.WordOrder(t.WordOrder),
		})
	case cfg.TransportModbusRTU:
		return modbusBus(rmodbus.Config{
			Kind:      "rtu",
			Port:      t.Port,
			Baud:      t.Baud,
			UnitID:    t.UnitID,
			Timeout:   timeout,
			WordOrder: rmodbus.WordOrder(t.WordOrder),
		})
	case cfg.TransportSim:
		return sim.New(mailboxes...), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", t.Kind)
	}
}

func modbusBus(c rmodbus.Config) (regio.Bus, error) {
	cli, err := rmodbus.New(c)
	if err != nil {
		return nil, err
	}
	return cli, nil
}

// coreSpecs returns the configured cores, or the chip defaults when none are listed.
// A configured core without firmware name inherits the default of the same name.
func coreSpecs(dc cfg.DeviceConfig) ([]CoreSpec, error) {
	v, err := LookupVariant(dc.Chip)
	if err != nil {
		return nil, err
	}
	if len(dc.Cores) == 0 {
		return v.Cores, nil
	}

	defaults := make(map[string]CoreSpec, len(v.Cores))
	for _, c := range v.Cores {
		defaults[c.Name] = c
	}

	out := make([]CoreSpec, 0, len(dc.Cores))
	for _, c := range dc.Cores {
		spec := CoreSpec{Name: c.Name, Mailbox: c.Mailbox, Firmware: c.Firmware}
		if spec.Firmware == "" {
			def, ok := defaults[c.Name]
			if !ok {
				return nil, fmt.Errorf("dsp: core %q of %s has no firmware name", c.Name, dc.Chip)
			}
			spec.Firmware = def.Firmware
		}
		out = append(out, spec)
	}
	return out, nil
}

func field(f *cfg.FieldConfig) *regio.Field {
	if f == nil {
		return nil
	}
	return &regio.Field{Reg: f.Reg, Mask: f.Mask}
}
