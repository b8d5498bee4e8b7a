// internal/mailbox/constants.go
package mailbox

import "golang.org/x/exp/constraints"

// Wire constants. These values define the protocol and MUST NOT be configurable.

// IdleWord is the mailbox value presented by an idle DSP.
const IdleWord uint32 = 0xF4F3F2F1

// Preamble marks the first fragment of every message and reply.
// On the wire it appears as bytes 0xA1, 0xB2.
const Preamble uint16 = 0xB2A1

const (
	preambleLo = byte(Preamble & 0xFF)
	preambleHi = byte(Preamble >> 8)
)

// FragmentSize is the unit of mailbox I/O in bytes.
const FragmentSize = 4

// MaxChunk is the largest KCS payload accepted by the DSP in one SetKcsSetup.
const MaxChunk = 96

// MaxKCSLength is the largest length expressible in the 10-bit length field.
const MaxKCSLength = 1023

// MaxKCSOffset is the highest KCS offset the DSP accepts.
const MaxKCSOffset = 3072

// maxFragments is the largest fragment count expressible in 10 bits.
const maxFragments = 1<<10 - 1

// ---- retry budgets ----

// IdleRetries is the read budget for both the idle wait and the reply preamble wait.
const IdleRetries = 10

// ChunkAttempts is the number of SetKcsSetup attempts per chunk.
const ChunkAttempts = 3

// DivCeil returns ceil(n/d) for positive d.
func DivCeil[T constraints.Integer](n, d T) T {
	return (n + d - 1) / d
}

// Pad returns the number of zero bytes needed to fill the last fragment of n bytes.
func Pad[T constraints.Integer](n T) T {
	return (FragmentSize - n%FragmentSize) % FragmentSize
}
