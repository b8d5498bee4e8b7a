// internal/monitor/monitor.go
package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
)

// Client is the command-invocation interface the monitor needs.
// *dsp.Device satisfies it.
type Client interface {
	Invoke(core string, cmd mailbox.Command) (uint32, error)
}

// Config is the minimal runtime config the monitor needs.
type Config struct {
	DeviceID string
	Interval time.Duration
	Cores    []string
}

// Monitor is a dumb, clock-driven health reader.
type Monitor struct {
	cfg    Config
	client Client
}

// New creates a monitor with immutable config.
func New(cfg Config, client Client) (*Monitor, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("monitor: device id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("monitor: interval must be > 0")
	}
	if len(cfg.Cores) == 0 {
		return nil, errors.New("monitor: at least one core required")
	}
	if client == nil {
		return nil, errors.New("monitor: client is nil")
	}
	return &Monitor{cfg: cfg, client: client}, nil
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle.
// A core whose algorithm is not running fails the cycle with ErrAlgorithmNotReady.
func (m *Monitor) PollOnce() Result {
	res := Result{
		DeviceID: m.cfg.DeviceID,
		At:       time.Now(),
	}

	var cores []CoreResult

	for _, name := range m.cfg.Cores {
		fs, err := m.client.Invoke(name, mailbox.GetFrameStatus)
		if err != nil {
			return res.failed(err)
		}
		cnt, err := m.client.Invoke(name, mailbox.GetCounter)
		if err != nil {
			return res.failed(err)
		}

		st := mailbox.FrameStatus(fs)
		if !st.AlgoOK() {
			return res.failed(fmt.Errorf("%w: core %s frame status %s", mailbox.ErrAlgorithmNotReady, name, st))
		}

		cores = append(cores, CoreResult{Core: name, FrameStatus: st, Counter: cnt})
	}

	// Commit only if all cores answered
	res.Cores = cores
	return res
}

func (r Result) failed(err error) Result {
	r.Err = err
	r.ErrorCode = mailbox.Code(err)
	return r
}
