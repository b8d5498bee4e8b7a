// internal/mailbox/decode.go
package mailbox

import "encoding/binary"

// ReplyHeader is the content of a reply preamble fragment.
type ReplyHeader struct {
	Status ReplyStatus
	// Length counts the payload fragments plus the trailing fragment.
	Length int
}

// Err returns the reply status as an error, nil for StatusOK.
func (h ReplyHeader) Err() error {
	if h.Status == StatusOK {
		return nil
	}
	return h.Status
}

// ParseReplyPreamble reports whether f carries the preamble signature and
// returns the header it encodes.
func ParseReplyPreamble(f Fragment) (ReplyHeader, bool) {
	if f[0] != preambleLo || f[1] != preambleHi {
		return ReplyHeader{}, false
	}
	return ReplyHeader{
		Status: ReplyStatus(f[2] >> 2),
		Length: SplitLength(f[2], f[3]),
	}, true
}

// Decoder consumes the fragments that follow a successful reply preamble.
//
// Feed is called once per fragment until Remaining reports 0. The last
// fragment fed is the trailing fragment, which is checked against the
// header length and the padding implied by the bytes copied.
type Decoder struct {
	cmd  Command
	desc Descriptor
	hdr  ReplyHeader

	dst    []byte
	want   int // bytes the caller asked for (byte-buffer replies)
	copied int

	payload int // payload fragments consumed
	done    bool
}

// NewDecoder prepares to decode the reply of cmd described by hdr into dst.
//
// Byte-buffer replies (commands with parameters) copy at most want bytes
// into dst. Scalar replies store one little-endian uint32 in dst[:4]; dst
// may be nil for commands without reply data.
func NewDecoder(cmd Command, hdr ReplyHeader, dst []byte, want int) (*Decoder, error) {
	d, ok := cmd.Descriptor()
	if !ok {
		return nil, invalid("unsupported command 0x%x", uint8(cmd))
	}
	if err := hdr.Err(); err != nil {
		return nil, err
	}
	if want > len(dst) {
		want = len(dst)
	}
	if !d.HasParams {
		if dst != nil && len(dst) < FragmentSize {
			return nil, invalid("scalar reply needs %d bytes, have %d", FragmentSize, len(dst))
		}
		// One payload fragment at most.
		if hdr.Length > 2 {
			return nil, &ProtocolError{Kind: ErrFrameIntegrity, Field: "LEN", Got: hdr.Length, Want: 2}
		}
	}
	return &Decoder{
		cmd:  cmd,
		desc: d,
		hdr:  hdr,
		dst:  dst,
		want: want,
		done: hdr.Length == 0,
	}, nil
}

// Remaining returns the number of fragments still to be fed.
func (d *Decoder) Remaining() int {
	if d.done {
		return 0
	}
	return d.hdr.Length - d.payload
}

// Done reports whether the reply is complete.
func (d *Decoder) Done() bool { return d.done }

// Copied returns the number of payload bytes stored so far.
func (d *Decoder) Copied() int { return d.copied }

// Short reports whether a completed byte-buffer reply carried a payload
// with fewer bytes than were requested.
func (d *Decoder) Short() bool {
	return d.done && d.desc.HasParams && d.hdr.Length > 0 && d.copied < d.want
}

// Feed consumes the next fragment.
func (d *Decoder) Feed(f Fragment) error {
	if d.done {
		return &ProtocolError{Kind: ErrFrameIntegrity, Field: "LEN", Got: d.payload + 1, Want: d.hdr.Length}
	}
	if d.payload < d.hdr.Length-1 {
		d.payload++
		d.store(f)
		return nil
	}
	d.done = true
	return d.checkTrailing(f)
}

func (d *Decoder) store(f Fragment) {
	if !d.desc.HasParams {
		if d.dst != nil {
			binary.LittleEndian.PutUint32(d.dst, f.Word())
		}
		return
	}
	if d.copied >= d.want {
		return
	}
	n := copy(d.dst[d.copied:d.want], f[:])
	d.copied += n
}

func (d *Decoder) checkTrailing(f Fragment) error {
	lenPost := int(f[0]) | int(f[1]&0xC0)<<2
	if lenPost != d.hdr.Length {
		return &ProtocolError{Kind: ErrFrameIntegrity, Field: "LEN_POST", Got: lenPost, Want: d.hdr.Length}
	}
	pad := int(f[1]&0x30) >> 4
	var want int
	if d.desc.HasParams {
		want = d.payload*FragmentSize - d.copied
	}
	if pad != want {
		return &ProtocolError{Kind: ErrFrameIntegrity, Field: "PAD_LEN", Got: pad, Want: want}
	}
	return nil
}

// ---- reply construction ----

// EncodeReply builds the fragments a DSP sends for a successful reply
// carrying payload. Scalar replies pass the 4 little-endian bytes of the value.
func EncodeReply(payload []byte) []Fragment {
	if len(payload) == 0 {
		return []Fragment{replyPreamble(StatusOK, 0)}
	}
	length := DivCeil(len(payload), FragmentSize) + 1
	pad := Pad(len(payload))

	frags := make([]Fragment, 0, 1+length)
	frags = append(frags, replyPreamble(StatusOK, length))
	for len(payload) > 0 {
		var f Fragment
		n := copy(f[:], payload)
		payload = payload[n:]
		frags = append(frags, f)
	}
	return append(frags, trailingFragment(length, pad))
}

// EncodeStatus builds the single-fragment reply carrying a failure status.
func EncodeStatus(s ReplyStatus) Fragment {
	return replyPreamble(s, 0)
}

func replyPreamble(s ReplyStatus, length int) Fragment {
	return Fragment{
		preambleLo,
		preambleHi,
		byte(s)<<2 | byte(length&0x3),
		byte(length >> 2),
	}
}
