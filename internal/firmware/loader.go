// internal/firmware/loader.go
package firmware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
)

// Querier issues parameterless commands. *session.Session implements it.
type Querier interface {
	Query(cmd mailbox.Command) (uint32, error)
}

// Writer writes the KCS. *kcs.Transfer implements it.
type Writer interface {
	Write(ctx context.Context, offset int, data []byte) error
}

// Muter asserts or releases the soft mute of the audio path.
type Muter interface {
	SetMute(on bool) error
}

// MuteFunc adapts a function to Muter.
type MuteFunc func(on bool) error

func (f MuteFunc) SetMute(on bool) error { return f(on) }

// Core is one DSP core to be loaded.
type Core struct {
	Name     string
	Firmware string
	Status   Querier
	KCS      Writer
}

// Config holds the loader configuration.
type Config struct {
	// Settle is the pause between two cores of a multi-core load.
	Settle time.Duration
	Logger *slog.Logger
}

// Option is a functional option for configuring a Loader.
type Option func(*Config)

// WithSettle sets the pause between cores.
func WithSettle(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.Settle = d
		}
	}
}

// WithLogger sets the loader logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Loader runs the firmware load flow:
//
//	Idle -> CheckingStatus -> Loading -> Ready
//
// Any step may end in Failed. The flow may be re-run at any time
// (device resume re-runs it from Idle).
type Loader struct {
	src  Source
	mute Muter
	cfg  Config

	mu     sync.Mutex
	states map[string]CoreState
}

// New creates a loader. mute may be nil when the audio path has no soft mute.
func New(src Source, mute Muter, opts ...Option) (*Loader, error) {
	if src == nil {
		return nil, errors.New("firmware: source is nil")
	}
	cfg := Config{Settle: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{
		src:    src,
		mute:   mute,
		cfg:    cfg,
		states: make(map[string]CoreState),
	}, nil
}

// Load runs the flow for every core in order, pausing between cores, and
// stops at the first failure.
func (l *Loader) Load(ctx context.Context, cores []Core) error {
	for i, c := range cores {
		if i > 0 && l.cfg.Settle > 0 {
			t := time.NewTimer(l.cfg.Settle)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := l.LoadCore(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// LoadCore runs the flow for one core.
func (l *Loader) LoadCore(ctx context.Context, c Core) error {
	if c.Status == nil || c.KCS == nil {
		return fmt.Errorf("%w: firmware: core %q not wired", mailbox.ErrInvalidRequest, c.Name)
	}
	start := time.Now()

	l.set(c.Name, CoreState{State: StateCheckingStatus})
	word, err := c.Status.Query(mailbox.GetFrameStatus)
	if err != nil {
		return l.fail(c, err)
	}
	if st := mailbox.FrameStatus(word); !st.AlgoOK() {
		return l.fail(c, fmt.Errorf("%w (frame status 0x%08x)", mailbox.ErrAlgorithmNotReady, word))
	}

	l.set(c.Name, CoreState{State: StateLoading})
	blob, err := l.src.Load(c.Firmware)
	if err != nil {
		return l.fail(c, err)
	}
	if len(blob) == 0 {
		return l.fail(c, fmt.Errorf("%w: firmware %s is empty", mailbox.ErrInvalidRequest, c.Firmware))
	}

	if err := l.setMute(true); err != nil {
		return l.fail(c, err)
	}
	err = c.KCS.Write(ctx, 0, blob)
	if uerr := l.setMute(false); err == nil {
		err = uerr
	}
	if err != nil {
		return l.fail(c, err)
	}

	l.set(c.Name, CoreState{State: StateReady, Size: len(blob)})
	l.info("firmware:ready",
		slog.String("core", c.Name),
		slog.String("firmware", c.Firmware),
		slog.Int("size", len(blob)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// State returns the last known state of a core.
func (l *Loader) State(name string) CoreState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[name]
}

// LoadedSize returns the blob size of a ready core, 0 otherwise.
func (l *Loader) LoadedSize(name string) int {
	st := l.State(name)
	if st.State != StateReady {
		return 0
	}
	return st.Size
}

func (l *Loader) set(name string, st CoreState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[name] = st
}

func (l *Loader) fail(c Core, err error) error {
	l.set(c.Name, CoreState{State: StateFailed, Err: err})
	if l.cfg.Logger != nil {
		l.cfg.Logger.LogAttrs(context.Background(), slog.LevelError, "firmware:failed",
			slog.String("core", c.Name),
			slog.String("firmware", c.Firmware),
			slog.Any("err", err),
		)
	}
	return fmt.Errorf("firmware: core %s: %w", c.Name, err)
}

func (l *Loader) setMute(on bool) error {
	if l.mute == nil {
		return nil
	}
	if err := l.mute.SetMute(on); err != nil {
		return fmt.Errorf("firmware: mute %v: %w", on, err)
	}
	return nil
}

func (l *Loader) info(msg string, attrs ...slog.Attr) {
	if l.cfg.Logger != nil {
		l.cfg.Logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
	}
}

// Broadcast sends the same parameterless command to every core in order
// and fails fast.
func Broadcast(cores []Querier, cmd mailbox.Command) error {
	d, ok := cmd.Descriptor()
	if !ok || d.HasParams {
		return fmt.Errorf("%w: %s cannot be broadcast", mailbox.ErrInvalidRequest, cmd)
	}
	for _, q := range cores {
		if _, err := q.Query(cmd); err != nil {
			return err
		}
	}
	return nil
}
