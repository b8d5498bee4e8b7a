// cmd/dspmbox/commands.go
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/dsp-mailbox/internal/config"
	"github.com/tamzrod/dsp-mailbox/internal/dsp"
	"github.com/tamzrod/dsp-mailbox/internal/kcs"
	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
)

type app struct {
	cfg *config.Config
	log *slog.Logger
	out io.Writer
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "load":
		return a.load(ctx, args)
	case "status":
		return a.status(args)
	case "send":
		return a.send(args)
	case "kcs-read":
		return a.kcsRead(args)
	case "kcs-write":
		return a.kcsWrite(ctx, args)
	case "clock":
		return a.clock(args)
	case "serve":
		return a.serve(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// ---- device lifecycle ----

func (a *app) deviceConfig(id string) (config.DeviceConfig, error) {
	for _, d := range a.cfg.DSP.Devices {
		if d.ID == id {
			return d, nil
		}
	}
	return config.DeviceConfig{}, fmt.Errorf("unknown device %q", id)
}

func (a *app) open(id string, extra ...kcs.Option) (*dsp.Device, error) {
	dc, err := a.deviceConfig(id)
	if err != nil {
		return nil, err
	}
	return dsp.Build(dc, a.cfg.DSP.FirmwareDir, a.log, extra...)
}

// openAll builds every configured device. On failure the devices built so far are closed.
func (a *app) openAll() ([]*dsp.Device, func(), error) {
	var devs []*dsp.Device
	closeAll := func() {
		for _, d := range devs {
			if err := d.Close(); err != nil {
				a.log.Warn("close failed", slog.String("device", d.ID()), slog.Any("err", err))
			}
		}
	}
	for _, dc := range a.cfg.DSP.Devices {
		d, err := dsp.Build(dc, a.cfg.DSP.FirmwareDir, a.log)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		devs = append(devs, d)
	}
	return devs, closeAll, nil
}

// loadAll runs the firmware flow on independent devices concurrently.
func (a *app) loadAll(ctx context.Context, devs []*dsp.Device) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range devs {
		d := d
		g.Go(func() error {
			if err := d.LoadFirmware(gctx); err != nil {
				return fmt.Errorf("device %s: %w", d.ID(), err)
			}
			a.log.Info("firmware loaded", slog.String("device", d.ID()))
			return nil
		})
	}
	return g.Wait()
}

// ---- commands ----

func (a *app) load(ctx context.Context, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("%w: load [device [core]]", errUsage)
	}
	if len(args) == 2 {
		d, err := a.open(args[0])
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.LoadCoreFirmware(ctx, args[1]); err != nil {
			return err
		}
		a.log.Info("firmware loaded", slog.String("device", d.ID()), slog.String("core", args[1]))
		return nil
	}
	if len(args) == 1 {
		d, err := a.open(args[0])
		if err != nil {
			return err
		}
		defer d.Close()
		return a.loadAll(ctx, []*dsp.Device{d})
	}

	devs, closeAll, err := a.openAll()
	if err != nil {
		return err
	}
	defer closeAll()
	return a.loadAll(ctx, devs)
}

func (a *app) status(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: status <device>", errUsage)
	}
	d, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	for _, core := range d.Cores() {
		fs, err := d.Invoke(core, mailbox.GetFrameStatus)
		if err != nil {
			return err
		}
		cnt, err := d.Invoke(core, mailbox.GetCounter)
		if err != nil {
			return err
		}
		rev, err := d.Invoke(core, mailbox.GetRevision)
		if err != nil {
			return err
		}
		st := mailbox.FrameStatus(fs)
		fmt.Fprintf(a.out, "%s/%s: status=0x%08x [%s] audio_rate=%d sensor_rate=%d counter=%d revision=0x%08x\n",
			d.ID(), core, fs, st, st.AudioRate(), st.SensorRate(), cnt, rev)
	}

	// optional path bits
	if muted, err := d.Muted(); err == nil {
		fmt.Fprintf(a.out, "%s: muted=%v\n", d.ID(), muted)
	} else if !errors.Is(err, dsp.ErrNoField) {
		return err
	}
	if routed, err := d.Routed(); err == nil {
		fmt.Fprintf(a.out, "%s: dsp_route=%v\n", d.ID(), routed)
	} else if !errors.Is(err, dsp.ErrNoField) {
		return err
	}
	return nil
}

func (a *app) send(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: send <device> <core> <command>", errUsage)
	}
	cmd, err := mailbox.ParseCommand(strings.ToUpper(args[2]))
	if err != nil {
		return err
	}
	d, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	v, err := d.Invoke(args[1], cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: 0x%08x\n", cmd, v)
	return nil
}

func (a *app) kcsRead(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("%w: kcs-read <device> <core> <offset> <n>", errUsage)
	}
	off, err := parseInt(args[2])
	if err != nil {
		return err
	}
	n, err := parseInt(args[3])
	if err != nil {
		return err
	}
	d, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	b, err := d.KcsRead(args[1], off, n)
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.out, hex.Dump(b))
	return err
}

func (a *app) kcsWrite(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("%w: kcs-write <device> <core> <offset> <file>", errUsage)
	}
	off, err := parseInt(args[2])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[3])
	if err != nil {
		return err
	}

	progress := kcs.WithProgressCallback(func(p kcs.Progress) {
		a.log.Debug("kcs write",
			slog.String("phase", p.Phase),
			slog.Int("chunk", p.Chunk),
			slog.Int("chunks", p.Chunks),
			slog.Float64("percent", p.Percentage),
			slog.Int("retries", p.Retries),
		)
	})
	d, err := a.open(args[0], progress)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.KcsWrite(ctx, args[1], off, data); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %d bytes at offset %d\n", len(data), off)
	return nil
}

func (a *app) clock(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: clock <device> stop|restart", errUsage)
	}
	var cmd mailbox.Command
	switch args[1] {
	case "stop":
		cmd = mailbox.ClockStop
	case "restart":
		cmd = mailbox.ClockRestart
	default:
		return fmt.Errorf("%w: clock mode %q", errUsage, args[1])
	}
	d, err := a.open(args[0])
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Broadcast(cmd)
}

func parseInt(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errUsage, err)
	}
	return int(v), nil
}
