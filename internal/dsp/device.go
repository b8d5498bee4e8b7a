// internal/dsp/device.go
package dsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tamzrod/dsp-mailbox/internal/firmware"
	"github.com/tamzrod/dsp-mailbox/internal/kcs"
	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
	"github.com/tamzrod/dsp-mailbox/internal/regio"
	"github.com/tamzrod/dsp-mailbox/internal/session"
)

var (
	// ErrUnknownCore is returned for a core name the device does not have.
	ErrUnknownCore = errors.New("dsp: unknown core")

	// ErrPathActive rejects KCS writes while the DSP audio path is running.
	ErrPathActive = errors.New("dsp: not allowed while the audio path is active")

	// ErrNoField is returned when a mute or bypass bit is not configured.
	ErrNoField = errors.New("dsp: register field not configured")
)

// Config wires one chip.
type Config struct {
	ID     string
	Cores  []CoreSpec
	Source firmware.Source

	// Mute is the soft-mute bit asserted around firmware loads (optional).
	Mute *regio.Field
	// Bypass is the DSP route cleared when a firmware load fails (optional).
	Bypass *regio.Field

	SessionOptions []session.Option
	KCSOptions     []kcs.Option
	Settle         time.Duration

	Logger *slog.Logger
}

type core struct {
	spec CoreSpec
	sess *session.Session
	kcs  *kcs.Transfer
}

// Device is the caller-facing API of one DSP-equipped chip.
// Each core has its own session; cores may be driven concurrently.
type Device struct {
	id     string
	bus    regio.Bus
	cores  []*core
	byName map[string]*core
	loader *firmware.Loader
	mute   *regio.Field
	bypass *regio.Field
	log    *slog.Logger
	active atomic.Bool
}

// New builds a device on bus.
func New(bus regio.Bus, cfg Config) (*Device, error) {
	if bus == nil {
		return nil, errors.New("dsp: bus is nil")
	}
	if len(cfg.Cores) == 0 {
		return nil, errors.New("dsp: no cores")
	}
	if cfg.Source == nil {
		return nil, errors.New("dsp: firmware source is nil")
	}

	log := cfg.Logger
	if log != nil {
		log = log.With(slog.String("device", cfg.ID))
	}

	d := &Device{
		id:     cfg.ID,
		bus:    bus,
		byName: make(map[string]*core),
		mute:   cfg.Mute,
		bypass: cfg.Bypass,
		log:    log,
	}

	for _, spec := range cfg.Cores {
		if _, dup := d.byName[spec.Name]; dup {
			return nil, fmt.Errorf("dsp: duplicate core %q", spec.Name)
		}
		sopts := append([]session.Option{session.WithLogger(coreLogger(log, spec))}, cfg.SessionOptions...)
		sess, err := session.New(bus, spec.Mailbox, sopts...)
		if err != nil {
			return nil, err
		}
		kopts := append([]kcs.Option{kcs.WithLogger(coreLogger(log, spec))}, cfg.KCSOptions...)
		tr, err := kcs.New(sess, kopts...)
		if err != nil {
			return nil, err
		}
		c := &core{spec: spec, sess: sess, kcs: tr}
		d.cores = append(d.cores, c)
		d.byName[spec.Name] = c
	}

	var muter firmware.Muter
	if cfg.Mute != nil {
		f := *cfg.Mute
		muter = firmware.MuteFunc(func(on bool) error { return f.Set(bus, on) })
	}
	loader, err := firmware.New(cfg.Source, muter,
		firmware.WithSettle(cfg.Settle),
		firmware.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	d.loader = loader
	return d, nil
}

func coreLogger(log *slog.Logger, spec CoreSpec) *slog.Logger {
	if log == nil {
		return nil
	}
	return log.With(slog.String("core", spec.Name))
}

// ID returns the configured device id.
func (d *Device) ID() string { return d.id }

// Cores returns the core names in load order.
func (d *Device) Cores() []string {
	out := make([]string, len(d.cores))
	for i, c := range d.cores {
		out[i] = c.spec.Name
	}
	return out
}

// Close releases the bus.
func (d *Device) Close() error { return d.bus.Close() }

func (d *Device) core(name string) (*core, error) {
	c, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q on %s", ErrUnknownCore, name, d.id)
	}
	return c, nil
}

// ---- commands ----

// SendCommand performs one raw exchange on a core.
func (d *Device) SendCommand(coreName string, cmd mailbox.Command, req *mailbox.Request) error {
	c, err := d.core(coreName)
	if err != nil {
		return err
	}
	return c.sess.Send(cmd, req)
}

// Invoke issues a parameterless command and returns its scalar reply.
// This is the command-invocation interface for control surfaces.
func (d *Device) Invoke(coreName string, cmd mailbox.Command) (uint32, error) {
	c, err := d.core(coreName)
	if err != nil {
		return 0, err
	}
	if desc, ok := cmd.Descriptor(); ok && desc.HasParams {
		return 0, fmt.Errorf("%w: %s needs parameters", mailbox.ErrInvalidRequest, cmd)
	}
	return c.sess.Query(cmd)
}

// Broadcast sends a parameterless command to every core and fails fast.
func (d *Device) Broadcast(cmd mailbox.Command) error {
	qs := make([]firmware.Querier, len(d.cores))
	for i, c := range d.cores {
		qs[i] = c.sess
	}
	return firmware.Broadcast(qs, cmd)
}

// SetActive marks the DSP audio path as running. Powering up restarts the
// DSP clocks of every core; powering down stops them.
func (d *Device) SetActive(on bool) error {
	cmd := mailbox.ClockStop
	if on {
		cmd = mailbox.ClockRestart
	}
	if err := d.Broadcast(cmd); err != nil {
		return err
	}
	d.active.Store(on)
	return nil
}

// Muted reports the soft-mute bit.
func (d *Device) Muted() (bool, error) {
	return d.field(d.mute)
}

// Routed reports the DSP route bit cleared by a failed firmware load.
func (d *Device) Routed() (bool, error) {
	return d.field(d.bypass)
}

func (d *Device) field(f *regio.Field) (bool, error) {
	if f == nil {
		return false, ErrNoField
	}
	return f.Get(d.bus)
}

// ---- KCS ----

// KcsWrite writes data into the KCS of a core in verified chunks.
func (d *Device) KcsWrite(ctx context.Context, coreName string, offset int, data []byte) error {
	if d.active.Load() {
		return ErrPathActive
	}
	c, err := d.core(coreName)
	if err != nil {
		return err
	}
	return c.kcs.Write(ctx, offset, data)
}

// KcsRead reads n bytes of the KCS of a core.
func (d *Device) KcsRead(coreName string, offset, n int) ([]byte, error) {
	c, err := d.core(coreName)
	if err != nil {
		return nil, err
	}
	return c.kcs.Read(offset, n)
}

// ReadLoadedKCS reads back the blob last loaded into a core.
func (d *Device) ReadLoadedKCS(coreName string) ([]byte, error) {
	c, err := d.core(coreName)
	if err != nil {
		return nil, err
	}
	n := d.loader.LoadedSize(coreName)
	if n == 0 {
		return nil, fmt.Errorf("%w: KCS of %s not loaded yet", mailbox.ErrInvalidRequest, coreName)
	}
	return c.kcs.ReadAll(0, n)
}

// ---- firmware ----

func (d *Device) loaderCore(c *core) firmware.Core {
	return firmware.Core{
		Name:     c.spec.Name,
		Firmware: c.spec.Firmware,
		Status:   c.sess,
		KCS:      c.kcs,
	}
}

// LoadFirmware runs the firmware flow on every core in order.
// On failure the DSP route is cleared so audio does not depend on a dead DSP.
func (d *Device) LoadFirmware(ctx context.Context) error {
	if d.active.Load() {
		return ErrPathActive
	}
	cores := make([]firmware.Core, len(d.cores))
	for i, c := range d.cores {
		cores[i] = d.loaderCore(c)
	}
	return d.revertOnFailure(d.loader.Load(ctx, cores))
}

// LoadCoreFirmware runs the firmware flow on one core.
func (d *Device) LoadCoreFirmware(ctx context.Context, coreName string) error {
	if d.active.Load() {
		return ErrPathActive
	}
	c, err := d.core(coreName)
	if err != nil {
		return err
	}
	return d.revertOnFailure(d.loader.LoadCore(ctx, d.loaderCore(c)))
}

// Reinit reruns the firmware flow after the chip lost its state (resume).
func (d *Device) Reinit(ctx context.Context) error {
	if d.log != nil {
		d.log.LogAttrs(ctx, slog.LevelInfo, "dsp:reinit")
	}
	return d.LoadFirmware(ctx)
}

// State returns the firmware state of a core.
func (d *Device) State(coreName string) firmware.CoreState {
	return d.loader.State(coreName)
}

func (d *Device) revertOnFailure(err error) error {
	if err == nil || d.bypass == nil {
		return err
	}
	if berr := d.bypass.Set(d.bus, false); berr != nil && d.log != nil {
		d.log.LogAttrs(context.Background(), slog.LevelError, "dsp:clear route failed", slog.Any("err", berr))
	}
	return err
}
