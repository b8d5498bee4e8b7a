// internal/mailbox/errors.go
package mailbox

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is a caller contract violation caught before any I/O.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotResponding means the idle word or reply preamble never showed up
	// within the retry budget: the DSP is not clocked or out of sync.
	ErrNotResponding = errors.New("dsp not responding")

	// ErrFrameIntegrity is a locally detected length or padding mismatch.
	ErrFrameIntegrity = errors.New("frame integrity")

	// ErrFragmentCountMismatch means the declared frame length does not
	// match the fragments the encoder emitted.
	ErrFragmentCountMismatch = errors.New("fragment count mismatch")

	// ErrAlgorithmNotReady means the DSP frame status lacks ALGO_OK.
	ErrAlgorithmNotReady = errors.New("dsp algorithm not ready")
)

// ReplyStatus is the status carried by a reply preamble.
// Every value other than StatusOK is an error.
type ReplyStatus uint8

const (
	StatusOK ReplyStatus = iota
	StatusMsgIntegrityError
	StatusExecutionError
	StatusCommandNotExist
	StatusUnknownError
	StatusMsgTooLong
)

var replyStatusText = map[ReplyStatus]string{
	StatusOK:                "ok",
	StatusMsgIntegrityError: "message integrity error",
	StatusExecutionError:    "execution error",
	StatusCommandNotExist:   "command does not exist",
	StatusUnknownError:      "unknown error",
	StatusMsgTooLong:        "message too long",
}

func (s ReplyStatus) String() string {
	if t, ok := replyStatusText[s]; ok {
		return t
	}
	return fmt.Sprintf("reply status %d", uint8(s))
}

func (s ReplyStatus) Error() string {
	return "dsp replied: " + s.String()
}

// ProtocolError is a framing violation detected by the codec.
type ProtocolError struct {
	Kind  error // ErrFrameIntegrity or ErrFragmentCountMismatch
	Field string
	Got   int
	Want  int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v: %s 0x%02x, expect 0x%02x", e.Kind, e.Field, e.Got, e.Want)
}

func (e *ProtocolError) Is(target error) bool {
	return target == e.Kind
}

// IOError wraps a register transport failure. It is never retried by the session.
type IOError struct {
	Op   string // "read" or "write"
	Addr uint16
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s 0x%04x: %v", e.Op, e.Addr, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CommandError attributes a failure to one command on one mailbox.
type CommandError struct {
	Addr uint16
	Cmd  Command
	Err  error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("dsp 0x%04x: %s: %v", e.Addr, e.Cmd, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ---- status codes ----

// Error codes published in the device status block.
const (
	CodeOK              uint16 = 0
	CodeGeneric         uint16 = 1
	CodeIO              uint16 = 2
	CodeInvalidRequest  uint16 = 3
	CodeNotResponding   uint16 = 4
	CodeFrameIntegrity  uint16 = 5
	CodeFragmentCount   uint16 = 6
	CodeAlgorithmNotOK  uint16 = 7
	codeReplyStatusBase uint16 = 0x10
)

// Code maps err to a stable numeric code. nil maps to CodeOK.
func Code(err error) uint16 {
	if err == nil {
		return CodeOK
	}
	var st ReplyStatus
	if errors.As(err, &st) {
		return codeReplyStatusBase + uint16(st)
	}
	var ioe *IOError
	switch {
	case errors.As(err, &ioe):
		return CodeIO
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrNotResponding):
		return CodeNotResponding
	case errors.Is(err, ErrFrameIntegrity):
		return CodeFrameIntegrity
	case errors.Is(err, ErrFragmentCountMismatch):
		return CodeFragmentCount
	case errors.Is(err, ErrAlgorithmNotReady):
		return CodeAlgorithmNotOK
	}
	return CodeGeneric
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}
