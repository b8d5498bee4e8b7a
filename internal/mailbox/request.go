// internal/mailbox/request.go
package mailbox

import "encoding/binary"

// Request bundles the per-call parameters of one command.
// The session never retains it beyond one Send.
type Request struct {
	// Offset is the KCS offset of the parameter fragment.
	Offset uint16
	// SetLen is the size field of the parameter fragment: bytes written for
	// SetKcsSetup, bytes requested for GetKcsSetup/GetKcsResults.
	SetLen uint16
	// SetData is the write payload, at least SetLen bytes.
	SetData []byte
	// GetLen is the number of reply bytes expected.
	GetLen uint16
	// GetData receives the reply. Byte-buffer replies copy up to GetLen
	// bytes; scalar replies store a little-endian uint32 in GetData[:4].
	GetData []byte
}

// Value returns the scalar stored by a scalar reply.
func (r *Request) Value() uint32 {
	if len(r.GetData) < FragmentSize {
		return 0
	}
	return binary.LittleEndian.Uint32(r.GetData)
}

// Validate checks r against the framing needs of cmd. It performs no I/O.
func (r *Request) Validate(cmd Command) error {
	d, ok := cmd.Descriptor()
	if !ok {
		return invalid("unsupported command 0x%x", uint8(cmd))
	}
	if d.HasParams && r.SetLen == 0 {
		return invalid("%s: size parameter is zero", cmd)
	}
	if d.HasSetupData {
		if r.SetData == nil {
			return invalid("%s: no setup data", cmd)
		}
		if len(r.SetData) < int(r.SetLen) {
			return invalid("%s: setup data has %d bytes, size is %d", cmd, len(r.SetData), r.SetLen)
		}
	}
	if d.HasReplyData {
		if r.GetData == nil {
			return invalid("%s: no reply buffer", cmd)
		}
		if !d.HasParams && len(r.GetData) < FragmentSize {
			return invalid("%s: scalar reply buffer has %d bytes", cmd, len(r.GetData))
		}
		if d.HasParams && int(r.GetLen) > len(r.GetData) {
			return invalid("%s: reply buffer has %d bytes, %d requested", cmd, len(r.GetData), r.GetLen)
		}
	}
	if cmd.ranged() {
		if r.SetLen > MaxKCSLength {
			return invalid("%s: size %d exceeds %d", cmd, r.SetLen, MaxKCSLength)
		}
		if r.Offset > MaxKCSOffset {
			return invalid("%s: offset %d exceeds %d", cmd, r.Offset, MaxKCSOffset)
		}
	}
	return nil
}
