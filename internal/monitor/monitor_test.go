// internal/monitor/monitor_test.go
package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
	"github.com/tamzrod/dsp-mailbox/internal/regio/sim"
	"github.com/tamzrod/dsp-mailbox/internal/session"
)

type fakeClient struct {
	failCmd mailbox.Command
	status  uint32
	calls   int
}

func (f *fakeClient) Invoke(core string, cmd mailbox.Command) (uint32, error) {
	f.calls++
	if cmd == f.failCmd {
		return 0, &mailbox.CommandError{Addr: 0xF000, Cmd: cmd, Err: mailbox.ErrNotResponding}
	}
	if cmd == mailbox.GetFrameStatus {
		return f.status, nil
	}
	return 42, nil
}

// sessions adapts per-core sessions to the command-invocation interface.
type sessions map[string]*session.Session

func (s sessions) Invoke(core string, cmd mailbox.Command) (uint32, error) {
	return s[core].Query(cmd)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		c    Client
	}{
		{"no id", Config{Interval: time.Second, Cores: []string{"dsp"}}, &fakeClient{}},
		{"no interval", Config{DeviceID: "amp", Cores: []string{"dsp"}}, &fakeClient{}},
		{"no cores", Config{DeviceID: "amp", Interval: time.Second}, &fakeClient{}},
		{"no client", Config{DeviceID: "amp", Interval: time.Second, Cores: []string{"dsp"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.c); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPollOnce_Success(t *testing.T) {
	c := &fakeClient{status: uint32(mailbox.FrameAlgoOK | mailbox.FrameFeedTru)}
	m, err := New(Config{DeviceID: "amp", Interval: time.Second, Cores: []string{"left", "right"}}, c)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := m.PollOnce()
	if res.Err != nil || res.ErrorCode != mailbox.CodeOK {
		t.Fatalf("PollOnce err=%v code=%d", res.Err, res.ErrorCode)
	}
	want := []CoreResult{
		{Core: "left", FrameStatus: mailbox.FrameAlgoOK | mailbox.FrameFeedTru, Counter: 42},
		{Core: "right", FrameStatus: mailbox.FrameAlgoOK | mailbox.FrameFeedTru, Counter: 42},
	}
	if diff := cmp.Diff(want, res.Cores); diff != "" {
		t.Fatalf("cores (-want +got):\n%s", diff)
	}
	if res.DeviceID != "amp" || res.At.IsZero() {
		t.Fatalf("result header: %+v", res)
	}
}

func TestPollOnce_Failure(t *testing.T) {
	c := &fakeClient{status: uint32(mailbox.FrameAlgoOK), failCmd: mailbox.GetCounter}
	m, err := New(Config{DeviceID: "amp", Interval: time.Second, Cores: []string{"left", "right"}}, c)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := m.PollOnce()
	if !errors.Is(res.Err, mailbox.ErrNotResponding) {
		t.Fatalf("expected not responding, got %v", res.Err)
	}
	if res.ErrorCode != mailbox.CodeNotResponding {
		t.Fatalf("code=%d", res.ErrorCode)
	}
	if res.Cores != nil {
		t.Fatalf("partial result committed: %+v", res.Cores)
	}
	if c.calls != 2 {
		t.Fatalf("cycle not aborted at first failure: %d calls", c.calls)
	}
}

func TestPollOnce_AlgorithmNotRunning(t *testing.T) {
	chip := sim.New(0xF000)
	chip.SetFrameStatus(0xF000, mailbox.FrameClkStop)
	sess, err := session.New(chip, 0xF000, session.WithIdleDelay(0))
	if err != nil {
		t.Fatal(err)
	}

	m, _ := New(Config{DeviceID: "amp", Interval: time.Second, Cores: []string{"dsp"}}, sessions{"dsp": sess})
	res := m.PollOnce()
	if !errors.Is(res.Err, mailbox.ErrAlgorithmNotReady) {
		t.Fatalf("expected algorithm not ready, got %v", res.Err)
	}
	if res.ErrorCode != mailbox.CodeAlgorithmNotOK {
		t.Fatalf("code=%d", res.ErrorCode)
	}
}

func TestPollOnce_Sim(t *testing.T) {
	chip := sim.New(0xF000, 0xF002)
	left, _ := session.New(chip, 0xF000, session.WithIdleDelay(0))
	right, _ := session.New(chip, 0xF002, session.WithIdleDelay(0))

	m, _ := New(Config{DeviceID: "amp", Interval: time.Second, Cores: []string{"left", "right"}},
		sessions{"left": left, "right": right})

	first := m.PollOnce()
	second := m.PollOnce()
	if first.Err != nil || second.Err != nil {
		t.Fatalf("errs: %v %v", first.Err, second.Err)
	}
	for i := range second.Cores {
		if second.Cores[i].Counter != first.Cores[i].Counter+1 {
			t.Fatalf("core %s: counter %d -> %d", second.Cores[i].Core, first.Cores[i].Counter, second.Cores[i].Counter)
		}
		if !second.Cores[i].FrameStatus.AlgoOK() {
			t.Fatalf("core %s: algo not ok", second.Cores[i].Core)
		}
	}
}

func TestRun_EmitsUntilCancelled(t *testing.T) {
	c := &fakeClient{status: uint32(mailbox.FrameAlgoOK)}
	m, _ := New(Config{DeviceID: "amp", Interval: 5 * time.Millisecond, Cores: []string{"dsp"}}, c)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Result)
	done := make(chan struct{})
	go func() {
		m.Run(ctx, out)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case res := <-out:
			if res.Err != nil {
				t.Fatalf("err=%v", res.Err)
			}
		case <-time.After(time.Second):
			t.Fatal("no result emitted")
		}
	}

	// Run must not block on a full channel after cancellation
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
