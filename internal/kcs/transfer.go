// internal/kcs/transfer.go
package kcs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tamzrod/dsp-mailbox/internal/mailbox"
)

// Sender performs one mailbox exchange. *session.Session implements it.
type Sender interface {
	Send(cmd mailbox.Command, req *mailbox.Request) error
	Addr() uint16
}

// Chunk is one SetKcsSetup message of a write.
type Chunk struct {
	Offset int
	Len    int
}

// Plan splits n bytes at offset into chunks of at most size bytes.
// Chunk offsets are contiguous and strictly increasing.
func Plan(offset, n, size int) []Chunk {
	if n <= 0 || size <= 0 {
		return nil
	}
	out := make([]Chunk, 0, mailbox.DivCeil(n, size))
	for done := 0; done < n; {
		l := min(size, n-done)
		out = append(out, Chunk{Offset: offset + done, Len: l})
		done += l
	}
	return out
}

// Transfer writes and reads the KCS of one DSP core.
type Transfer struct {
	s   Sender
	cfg Config
	log *slog.Logger
}

// New creates a transfer bound to one mailbox.
func New(s Sender, opts ...Option) (*Transfer, error) {
	if s == nil {
		return nil, errors.New("kcs: sender is nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Transfer{s: s, cfg: cfg, log: cfg.Logger}, nil
}

// Write stores data in the KCS starting at offset.
//
// The blob is sent in chunks. A failed chunk is resent up to the attempt
// budget before the whole write aborts with the last error. Each accepted
// chunk is followed by a GetKcsResults check whose failure aborts the write.
// ctx is checked between chunks; an exchange in flight is never interrupted.
func (t *Transfer) Write(ctx context.Context, offset int, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: kcs: empty write", mailbox.ErrInvalidRequest)
	}
	chunks := Plan(offset, len(data), t.cfg.ChunkSize)
	if offset < 0 || chunks[len(chunks)-1].Offset > mailbox.MaxKCSOffset {
		return fmt.Errorf("%w: kcs: write of %d bytes at offset %d exceeds offset %d",
			mailbox.ErrInvalidRequest, len(data), offset, mailbox.MaxKCSOffset)
	}

	start := time.Now()
	t.info("kcs:write start",
		slog.Int("offset", offset),
		slog.Int("size", len(data)),
		slog.Int("chunks", len(chunks)),
	)

	var (
		result  [mailbox.FragmentSize]byte
		done    int
		retries int
	)
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("kcs: cancelled at offset %d: %w", c.Offset, err)
		}

		n, err := t.writeChunk(c, data[done:done+c.Len], result[:])
		retries += n
		if err != nil {
			return fmt.Errorf("kcs: chunk %d/%d at offset %d: %w", i+1, len(chunks), c.Offset, err)
		}
		done += c.Len

		if err := t.s.Send(mailbox.GetKcsResults, &mailbox.Request{
			SetLen:  mailbox.FragmentSize,
			GetLen:  mailbox.FragmentSize,
			GetData: result[:],
		}); err != nil {
			return fmt.Errorf("kcs: results after offset %d: %w", c.Offset, err)
		}

		t.report(Progress{
			Phase:   PhaseWriting,
			Chunk:   i + 1,
			Chunks:  len(chunks),
			Done:    done,
			Total:   len(data),
			Retries: retries,
			Elapsed: time.Since(start),
		})
	}

	t.report(Progress{
		Phase:   PhaseComplete,
		Chunk:   len(chunks),
		Chunks:  len(chunks),
		Done:    done,
		Total:   len(data),
		Retries: retries,
		Elapsed: time.Since(start),
	})
	t.info("kcs:write done",
		slog.Int("size", len(data)),
		slog.Int("retries", retries),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// writeChunk sends one chunk and returns the number of failed attempts.
func (t *Transfer) writeChunk(c Chunk, payload, result []byte) (int, error) {
	req := &mailbox.Request{
		Offset:  uint16(c.Offset),
		SetLen:  uint16(c.Len),
		SetData: payload,
		GetLen:  mailbox.FragmentSize,
		GetData: result,
	}

	var err error
	for attempt := 1; attempt <= t.cfg.Attempts; attempt++ {
		if err = t.s.Send(mailbox.SetKcsSetup, req); err == nil {
			return attempt - 1, nil
		}
		t.warn("kcs:chunk failed",
			slog.Int("offset", c.Offset),
			slog.Int("attempt", attempt),
			slog.Any("err", err),
		)
	}
	return t.cfg.Attempts, err
}

// Read fetches n bytes of the KCS at offset in one GetKcsSetup exchange.
func (t *Transfer) Read(offset, n int) ([]byte, error) {
	if n <= 0 || n > mailbox.MaxKCSLength || offset < 0 || offset > mailbox.MaxKCSOffset {
		return nil, fmt.Errorf("%w: kcs: read of %d bytes at offset %d", mailbox.ErrInvalidRequest, n, offset)
	}
	buf := make([]byte, n)
	err := t.s.Send(mailbox.GetKcsSetup, &mailbox.Request{
		Offset:  uint16(offset),
		SetLen:  uint16(n),
		GetLen:  uint16(n),
		GetData: buf,
	})
	if err != nil {
		return nil, fmt.Errorf("kcs: read at offset %d: %w", offset, err)
	}
	return buf, nil
}

// ReadAll reads n bytes at offset in GetKcsSetup pieces of at most
// MaxKCSLength bytes. Every piece must start at or below MaxKCSOffset.
func (t *Transfer) ReadAll(offset, n int) ([]byte, error) {
	if n <= 0 || offset < 0 {
		return nil, fmt.Errorf("%w: kcs: read of %d bytes at offset %d", mailbox.ErrInvalidRequest, n, offset)
	}
	pieces := Plan(offset, n, mailbox.MaxKCSLength)
	if last := pieces[len(pieces)-1]; last.Offset > mailbox.MaxKCSOffset {
		return nil, fmt.Errorf("%w: kcs: read of %d bytes at offset %d exceeds offset %d",
			mailbox.ErrInvalidRequest, n, offset, mailbox.MaxKCSOffset)
	}

	out := make([]byte, 0, n)
	for _, p := range pieces {
		b, err := t.Read(p.Offset, p.Len)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// ---- helpers ----

func (t *Transfer) report(p Progress) {
	if t.cfg.ProgressCallback == nil {
		return
	}
	p.Addr = t.s.Addr()
	if p.Total > 0 {
		p.Percentage = float64(p.Done) / float64(p.Total) * 100
	}
	t.cfg.ProgressCallback(p)
}

func (t *Transfer) info(msg string, attrs ...slog.Attr) {
	if t.log != nil {
		t.log.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
	}
}

func (t *Transfer) warn(msg string, attrs ...slog.Attr) {
	if t.log != nil {
		t.log.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
	}
}
