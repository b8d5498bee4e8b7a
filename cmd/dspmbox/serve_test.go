// cmd/dspmbox/serve_test.go
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tamzrod/dsp-mailbox/internal/config"
	"github.com/tamzrod/dsp-mailbox/internal/dsp"
	"github.com/tamzrod/dsp-mailbox/internal/firmware"
	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
	"github.com/tamzrod/dsp-mailbox/internal/monitor"
	"github.com/tamzrod/dsp-mailbox/internal/status"
)

func states(m map[string]firmware.CoreState) stateFunc {
	return func(core string) firmware.CoreState { return m[core] }
}

func TestInitialSnapshot(t *testing.T) {
	ready := states(map[string]firmware.CoreState{
		"left":  {State: firmware.StateReady},
		"right": {State: firmware.StateReady},
	})

	s := initialSnapshot(ready, []string{"left", "right"}, true)
	if s.Health != status.HealthUnknown {
		t.Fatalf("health=%d", s.Health)
	}
	if s.Cores[0].State != uint16(firmware.StateReady) || s.Cores[1].State != uint16(firmware.StateReady) {
		t.Fatalf("core states: %+v", s.Cores)
	}

	if s := initialSnapshot(ready, []string{"left"}, false); s.Health != status.HealthDisabled {
		t.Fatalf("unmonitored health=%d", s.Health)
	}

	failed := states(map[string]firmware.CoreState{
		"left":  {State: firmware.StateFailed, Err: mailbox.ErrAlgorithmNotReady},
		"right": {State: firmware.StateIdle},
	})
	s = initialSnapshot(failed, []string{"left", "right"}, false)
	if s.Health != status.HealthError || s.LastErrorCode != mailbox.CodeAlgorithmNotOK {
		t.Fatalf("failed load: health=%d code=%d", s.Health, s.LastErrorCode)
	}
}

func TestNextSnapshot(t *testing.T) {
	cores := []string{"left", "right"}
	st := states(map[string]firmware.CoreState{
		"left":  {State: firmware.StateReady},
		"right": {State: firmware.StateReady},
	})

	prev := status.Snapshot{Health: status.HealthError, LastErrorCode: 4, SecondsInError: 12}

	ok := monitor.Result{Cores: []monitor.CoreResult{
		{Core: "left", FrameStatus: mailbox.FrameAlgoOK, Counter: 10},
		{Core: "right", FrameStatus: mailbox.FrameAlgoOK | mailbox.FrameOVP, Counter: 11},
	}}
	got := nextSnapshot(prev, ok, st, cores)

	want := status.Snapshot{
		Health: status.HealthOK,
		Cores: [status.MaxCores]status.CoreSnapshot{
			{State: uint16(firmware.StateReady), FrameStatus: uint32(mailbox.FrameAlgoOK), Counter: 10},
			{State: uint16(firmware.StateReady), FrameStatus: uint32(mailbox.FrameAlgoOK | mailbox.FrameOVP), Counter: 11},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("recovery (-want +got):\n%s", diff)
	}

	// failure keeps the last good frame values and the seconds counter
	failed := monitor.Result{Err: errors.New("x"), ErrorCode: mailbox.CodeIO}
	got.SecondsInError = 0
	next := nextSnapshot(got, failed, st, cores)
	if next.Health != status.HealthError || next.LastErrorCode != mailbox.CodeIO {
		t.Fatalf("failure: %+v", next)
	}
	if next.Cores != got.Cores {
		t.Fatalf("core values changed on failure")
	}

	// identical result: no change
	if again := nextSnapshot(next, failed, st, cores); again != next {
		t.Fatalf("snapshot changed on identical result")
	}
}

func TestTickSeconds(t *testing.T) {
	if _, ok := tickSeconds(status.Snapshot{Health: status.HealthOK}); ok {
		t.Fatal("ticked while healthy")
	}
	if _, ok := tickSeconds(status.Snapshot{Health: status.HealthDisabled}); ok {
		t.Fatal("ticked while disabled")
	}
	if _, ok := tickSeconds(status.Snapshot{Health: status.HealthError, SecondsInError: 65535}); ok {
		t.Fatal("seconds_in_error wrapped")
	}
	s, ok := tickSeconds(status.Snapshot{Health: status.HealthUnknown, SecondsInError: 4})
	if !ok || s.SecondsInError != 5 {
		t.Fatalf("tick: ok=%v seconds=%d", ok, s.SecondsInError)
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := parseLevel("trace"); err != nil || l >= -4 {
		t.Fatalf("trace: %v %v", l, err)
	}
	if l, err := parseLevel("warn"); err != nil || l.String() != "WARN" {
		t.Fatalf("warn: %v %v", l, err)
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMarkStale(t *testing.T) {
	now := time.Now()
	ok := status.Snapshot{Health: status.HealthOK}

	if _, changed := markStale(ok, now.Add(-2*time.Second), now, 3*time.Second); changed {
		t.Fatal("marked stale within the window")
	}
	s, changed := markStale(ok, now.Add(-4*time.Second), now, 3*time.Second)
	if !changed || s.Health != status.HealthStale {
		t.Fatalf("stale: changed=%v health=%d", changed, s.Health)
	}
	if _, changed := markStale(status.Snapshot{Health: status.HealthError}, now.Add(-time.Hour), now, time.Second); changed {
		t.Fatal("error state overwritten by stale")
	}
	if _, changed := markStale(ok, now.Add(-time.Hour), now, 0); changed {
		t.Fatal("stale check with monitoring disabled")
	}

	// stale counts as time in error
	if _, ticked := tickSeconds(s); !ticked {
		t.Fatal("seconds_in_error not ticking while stale")
	}
}

type recordingWriter struct {
	mu    sync.Mutex
	snaps []status.Snapshot
	ok    chan struct{}
	once  sync.Once
}

func (w *recordingWriter) WriteStatus(s status.Snapshot) error {
	w.mu.Lock()
	w.snaps = append(w.snaps, s)
	w.mu.Unlock()
	if s.Health == status.HealthOK {
		w.once.Do(func() { close(w.ok) })
	}
	return nil
}

func simDevice(t *testing.T, id string) (*dsp.Device, config.DeviceConfig) {
	t.Helper()
	dc := config.DeviceConfig{
		ID:        id,
		Chip:      "nau8310",
		Transport: config.TransportConfig{Kind: config.TransportSim},
		Protocol:  config.ProtocolConfig{IdleDelayUs: new(int)},
		Poll:      config.PollConfig{IntervalMs: 5},
	}
	d, err := dsp.Build(dc, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, dc
}

func testApp(devs ...config.DeviceConfig) *app {
	return &app{
		cfg: &config.Config{DSP: config.DSPConfig{Devices: devs}},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		out: io.Discard,
	}
}

func TestBuildPipelines(t *testing.T) {
	polled, pc := simDevice(t, "polled")
	idle, ic := simDevice(t, "idle")
	ic.Poll.IntervalMs = 0

	a := testApp(pc, ic)
	ps, err := a.buildPipelines([]*dsp.Device{polled, idle}, nil)
	if err != nil {
		t.Fatalf("buildPipelines err=%v", err)
	}
	if len(ps) != 1 || ps[0].dev != polled || ps[0].mon == nil || ps[0].sw != nil {
		t.Fatalf("pipelines: %+v", ps)
	}
	if ps[0].staleAfter != 15*time.Millisecond {
		t.Fatalf("staleAfter=%v", ps[0].staleAfter)
	}
}

func TestBuildPipelines_StatusWithoutClient(t *testing.T) {
	d, dc := simDevice(t, "amp")
	slot := uint16(0)
	dc.StatusSlot = &slot

	a := testApp(dc)
	a.cfg.DSP.Status = &config.StatusConfig{Endpoint: "127.0.0.1:1502"}
	if _, err := a.buildPipelines([]*dsp.Device{d}, nil); err == nil {
		t.Fatal("expected error for status without client")
	}
}

func TestRunPipelines_PublishesAndStops(t *testing.T) {
	d, dc := simDevice(t, "amp")
	a := testApp(dc)

	mon, err := buildMonitor(dc, d)
	if err != nil {
		t.Fatal(err)
	}
	w := &recordingWriter{ok: make(chan struct{})}
	ps := []pipeline{{dev: d, mon: mon, sw: w, staleAfter: time.Second}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.runPipelines(ctx, ps)
		close(done)
	}()

	select {
	case <-w.ok:
	case <-time.After(2 * time.Second):
		t.Fatal("no healthy status published")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runPipelines did not return after cancel")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.snaps[0].Health != status.HealthUnknown {
		t.Fatalf("first write health=%d, want unknown", w.snaps[0].Health)
	}
}
