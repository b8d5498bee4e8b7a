// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
	"github.com/tamzrod/dsp-mailbox/internal/regio"
)

// Session drives one mailbox register. Exchanges are serialized: a new
// message is never written before the previous reply has been read.
type Session struct {
	mu   sync.Mutex
	ch   regio.Channel
	addr uint16
	cfg  Config

	log          *slog.Logger
	traceEnabled bool
}

// New binds a session to the mailbox at addr.
func New(ch regio.Channel, addr uint16, opts ...Option) (*Session, error) {
	if ch == nil {
		return nil, errors.New("session: channel is nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Session{
		ch:   ch,
		addr: addr,
		cfg:  cfg,
		log:  cfg.Logger,
	}
	s.traceEnabled = s.log != nil && s.log.Handler().Enabled(context.Background(), LevelTrace)
	return s, nil
}

// Addr returns the mailbox register address.
func (s *Session) Addr() uint16 { return s.addr }

// Send performs one request/reply exchange.
//
// The request is validated before any I/O. Transport failures are returned
// as *mailbox.IOError and are never retried here. Every error is wrapped in
// a *mailbox.CommandError naming the mailbox and command.
func (s *Session) Send(cmd mailbox.Command, req *mailbox.Request) error {
	if req == nil {
		req = &mailbox.Request{}
	}
	err := s.send(cmd, req)
	if err != nil {
		s.warn("mailbox:send failed",
			slog.String("cmd", cmd.String()),
			slog.String("addr", fmt.Sprintf("0x%04x", s.addr)),
			slog.Any("err", err),
		)
		return &mailbox.CommandError{Addr: s.addr, Cmd: cmd, Err: err}
	}
	return nil
}

// Query sends a command without parameters and returns its scalar reply.
// Commands without reply data return 0.
func (s *Session) Query(cmd mailbox.Command) (uint32, error) {
	var buf [mailbox.FragmentSize]byte
	req := &mailbox.Request{GetLen: mailbox.FragmentSize, GetData: buf[:]}
	if d, ok := cmd.Descriptor(); ok && !d.HasReplyData {
		req.GetData = nil
	}
	if err := s.Send(cmd, req); err != nil {
		return 0, err
	}
	return req.Value(), nil
}

func (s *Session) send(cmd mailbox.Command, req *mailbox.Request) error {
	if err := req.Validate(cmd); err != nil {
		return err
	}
	d, _ := cmd.Descriptor()

	frags, err := mailbox.Encode(cmd, req, mailbox.FragmentCount(cmd, int(req.SetLen)))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := s.waitIdle(); err != nil {
		return err
	}

	for _, f := range frags {
		s.trace("mailbox:tx", slog.String("frag", f.String()))
		if err := s.ch.Write32(s.addr, f.Word()); err != nil {
			return &mailbox.IOError{Op: "write", Addr: s.addr, Err: err}
		}
	}

	if err := s.readReply(cmd, d, req); err != nil {
		return err
	}

	s.debug("mailbox:exchange",
		slog.String("cmd", cmd.String()),
		slog.Int("frags", len(frags)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// ---- polling ----

func (s *Session) read() (uint32, error) {
	w, err := s.ch.Read32(s.addr)
	if err != nil {
		return 0, &mailbox.IOError{Op: "read", Addr: s.addr, Err: err}
	}
	return w, nil
}

func (s *Session) pause(attempt int) {
	if s.cfg.IdleDelay > 0 && attempt < s.cfg.IdleRetries-1 {
		time.Sleep(s.cfg.IdleDelay)
	}
}

func (s *Session) waitIdle() error {
	for i := 0; i < s.cfg.IdleRetries; i++ {
		w, err := s.read()
		if err != nil {
			return err
		}
		if w == mailbox.IdleWord {
			return nil
		}
		s.trace("mailbox:busy", slog.String("word", fmt.Sprintf("0x%08x", w)))
		s.pause(i)
	}
	return fmt.Errorf("%w: no idle pattern after %d reads", mailbox.ErrNotResponding, s.cfg.IdleRetries)
}

func (s *Session) waitReply() (mailbox.ReplyHeader, error) {
	for i := 0; i < s.cfg.IdleRetries; i++ {
		w, err := s.read()
		if err != nil {
			return mailbox.ReplyHeader{}, err
		}
		f := mailbox.FragmentOf(w)
		if hdr, ok := mailbox.ParseReplyPreamble(f); ok {
			s.trace("mailbox:rx", slog.String("frag", f.String()),
				slog.Int("len", hdr.Length), slog.Int("status", int(hdr.Status)))
			return hdr, nil
		}
		s.pause(i)
	}
	return mailbox.ReplyHeader{}, fmt.Errorf("%w: no reply preamble after %d reads", mailbox.ErrNotResponding, s.cfg.IdleRetries)
}

func (s *Session) readReply(cmd mailbox.Command, d mailbox.Descriptor, req *mailbox.Request) error {
	hdr, err := s.waitReply()
	if err != nil {
		return err
	}

	dst, want := req.GetData, int(req.GetLen)
	if !d.HasReplyData {
		dst, want = nil, 0
	}
	dec, err := mailbox.NewDecoder(cmd, hdr, dst, want)
	if err != nil {
		return err
	}

	for dec.Remaining() > 0 {
		w, err := s.read()
		if err != nil {
			return err
		}
		f := mailbox.FragmentOf(w)
		s.trace("mailbox:rx", slog.String("frag", f.String()))
		if err := dec.Feed(f); err != nil {
			return err
		}
	}

	if dec.Short() {
		s.warn("mailbox:short reply",
			slog.String("cmd", cmd.String()),
			slog.Int("got", dec.Copied()),
			slog.Int("want", want),
		)
	}
	return nil
}
