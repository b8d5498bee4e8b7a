// cmd/dspmbox/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/dsp-mailbox/internal/config"
	"github.com/tamzrod/dsp-mailbox/internal/dsp"
	"github.com/tamzrod/dsp-mailbox/internal/firmware"
	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
	"github.com/tamzrod/dsp-mailbox/internal/monitor"
	"github.com/tamzrod/dsp-mailbox/internal/status"
	"github.com/tamzrod/dsp-mailbox/internal/writer"
	wmodbus "github.com/tamzrod/dsp-mailbox/internal/writer/modbus"
)

type stateFunc func(core string) firmware.CoreState

// serve loads every device, then monitors and publishes status until ctx ends.
// A device whose firmware fails to load keeps being served; its status shows the error.
func (a *app) serve(ctx context.Context) error {
	devs, closeAll, err := a.openAll()
	if err != nil {
		return err
	}
	defer closeAll()

	// --------------------
	// Firmware (independent devices load concurrently)
	// --------------------

	var g errgroup.Group
	for _, d := range devs {
		d := d
		g.Go(func() error {
			err := d.LoadFirmware(ctx)
			switch {
			case err == nil:
				a.log.Info("firmware loaded", slog.String("device", d.ID()))
			case errors.Is(err, context.Canceled):
				return err
			default:
				a.log.Error("firmware load failed", slog.String("device", d.ID()), slog.Any("err", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// --------------------
	// Status memory client (shared)
	// --------------------

	var cli *wmodbus.EndpointClient
	if a.cfg.DSP.Status != nil {
		cli, err = writer.BuildEndpointClient(a.cfg.DSP.Status)
		if err != nil {
			return err
		}
		defer cli.Close()
	}

	// --------------------
	// Per-device pipelines (all built before any goroutine starts)
	// --------------------

	ps, err := a.buildPipelines(devs, cli)
	if err != nil {
		return err
	}
	a.runPipelines(ctx, ps)
	return nil
}

// staleFactor is the number of poll intervals without a result after which
// a healthy device is reported stale.
const staleFactor = 3

// pipeline is the monitor and status writer of one device. Either may be nil.
type pipeline struct {
	dev        *dsp.Device
	mon        *monitor.Monitor
	sw         writer.StatusWriter
	staleAfter time.Duration
}

func (a *app) buildPipelines(devs []*dsp.Device, cli *wmodbus.EndpointClient) ([]pipeline, error) {
	var ps []pipeline
	for i, d := range devs {
		dc := a.cfg.DSP.Devices[i]

		p := pipeline{dev: d}
		if plan, ok := writer.BuildStatusPlan(dc, a.cfg.DSP.Status); ok {
			if cli == nil {
				return nil, fmt.Errorf("device %q: status enabled without status client", dc.ID)
			}
			w, _ := writer.NewDeviceStatusWriter(plan, cli)
			p.sw = w
		}

		mon, err := buildMonitor(dc, d)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", dc.ID, err)
		}
		p.mon = mon
		p.staleAfter = staleFactor * time.Duration(dc.Poll.IntervalMs) * time.Millisecond

		if p.mon == nil && p.sw == nil {
			continue
		}
		ps = append(ps, p)
	}
	return ps, nil
}

// runPipelines runs every pipeline until ctx ends and waits for all of them.
func (a *app) runPipelines(ctx context.Context, ps []pipeline) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, p := range ps {
		wg.Add(1)
		go func(p pipeline) {
			defer wg.Done()
			a.orchestrate(ctx, p)
		}(p)
	}

	<-ctx.Done()
	wg.Wait()
}

// buildMonitor returns nil when polling is disabled for the device.
func buildMonitor(dc config.DeviceConfig, d *dsp.Device) (*monitor.Monitor, error) {
	if dc.Poll.IntervalMs <= 0 {
		return nil, nil
	}
	return monitor.New(monitor.Config{
		DeviceID: d.ID(),
		Interval: time.Duration(dc.Poll.IntervalMs) * time.Millisecond,
		Cores:    d.Cores(),
	}, d)
}

// orchestrate owns the status snapshot of one device (runner-owned state + 1Hz seconds ticker).
func (a *app) orchestrate(ctx context.Context, p pipeline) {
	d := p.dev
	log := a.log.With(slog.String("device", d.ID()))
	cores := d.Cores()

	write := func(s status.Snapshot) {
		if p.sw == nil {
			return
		}
		if err := p.sw.WriteStatus(s); err != nil {
			log.Warn("status write failed", slog.Any("err", err))
		}
	}

	out := make(chan monitor.Result)
	if p.mon != nil {
		go p.mon.Run(ctx, out)
	}

	// Full block write on start (identity re-assert).
	snap := initialSnapshot(d.State, cores, p.mon != nil)
	write(snap)
	lastResult := time.Now()

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-out:
			lastResult = res.At
			if res.Err != nil {
				log.Warn("health poll failed", slog.Any("err", res.Err), slog.Int("code", int(res.ErrorCode)))
			}
			next := nextSnapshot(snap, res, d.State, cores)
			if next != snap {
				snap = next
				write(snap)
			}

		case now := <-secTicker.C:
			if next, ok := markStale(snap, lastResult, now, p.staleAfter); ok {
				log.Warn("health poll stale", slog.Duration("since", now.Sub(lastResult)))
				snap = next
				write(snap)
			}
			if next, ok := tickSeconds(snap); ok {
				snap = next
				write(snap)
			}
		}
	}
}

// markStale downgrades a healthy snapshot when no poll result arrived
// within after. after <= 0 disables the check.
func markStale(s status.Snapshot, last, now time.Time, after time.Duration) (status.Snapshot, bool) {
	if after <= 0 || s.Health != status.HealthOK || now.Sub(last) <= after {
		return s, false
	}
	s.Health = status.HealthStale
	return s, true
}

// initialSnapshot reflects the firmware flow outcome before the first poll.
func initialSnapshot(state stateFunc, cores []string, monitored bool) status.Snapshot {
	var s status.Snapshot

	s.Health = status.HealthUnknown
	if !monitored {
		s.Health = status.HealthDisabled
	}
	for i, name := range cores {
		if i >= status.MaxCores {
			break
		}
		st := state(name)
		s.Cores[i].State = uint16(st.State)
		if st.State == firmware.StateFailed && s.LastErrorCode == 0 {
			s.Health = status.HealthError
			s.LastErrorCode = mailbox.Code(st.Err)
		}
	}
	return s
}

// nextSnapshot applies one monitor result.
// seconds_in_error increments on the 1Hz ticker only.
func nextSnapshot(prev status.Snapshot, res monitor.Result, state stateFunc, cores []string) status.Snapshot {
	next := prev

	if res.Err == nil {
		// Recovery / OK
		next.Health = status.HealthOK
		next.LastErrorCode = 0
		next.SecondsInError = 0
	} else {
		next.Health = status.HealthError
		next.LastErrorCode = res.ErrorCode
	}

	for i, name := range cores {
		if i >= status.MaxCores {
			break
		}
		next.Cores[i].State = uint16(state(name).State)
	}

	// Results are committed all-or-nothing, in core order.
	for i, cr := range res.Cores {
		if i >= status.MaxCores {
			break
		}
		next.Cores[i].FrameStatus = uint32(cr.FrameStatus)
		next.Cores[i].Counter = cr.Counter
	}

	return next
}

// tickSeconds advances seconds_in_error while the device is in error.
func tickSeconds(s status.Snapshot) (status.Snapshot, bool) {
	if s.Health == status.HealthOK || s.Health == status.HealthDisabled {
		return s, false
	}
	if s.SecondsInError == 65535 {
		return s, false
	}
	s.SecondsInError++
	return s, true
}
