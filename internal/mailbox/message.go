// internal/mailbox/message.go
package mailbox

// Message is an outgoing message as seen by the DSP.
type Message struct {
	Cmd    Command
	Length int // frame length declared in the preamble
	Offset uint16
	Size   uint16
	Data   []byte
}

// ParseMessagePreamble reports whether f starts a message and returns the
// command and declared frame length.
func ParseMessagePreamble(f Fragment) (Command, int, bool) {
	if f[0] != preambleLo || f[1] != preambleHi {
		return 0, 0, false
	}
	return Command(f[2] >> 2), SplitLength(f[2], f[3]), true
}

// DecodeMessage parses a complete message: the preamble followed by the
// declared number of fragments. The trailing fragment count and padding
// are verified.
func DecodeMessage(frags []Fragment) (Message, error) {
	if len(frags) == 0 {
		return Message{}, &ProtocolError{Kind: ErrFrameIntegrity, Field: "LEN", Got: 0, Want: 1}
	}
	cmd, length, ok := ParseMessagePreamble(frags[0])
	if !ok {
		return Message{}, &ProtocolError{Kind: ErrFrameIntegrity, Field: "PREAMBLE", Got: int(frags[0].Word() & 0xFFFF), Want: int(Preamble)}
	}
	if len(frags) != 1+length {
		return Message{}, &ProtocolError{Kind: ErrFrameIntegrity, Field: "LEN", Got: len(frags) - 1, Want: length}
	}
	m := Message{Cmd: cmd, Length: length}
	if length == 0 {
		return m, nil
	}
	if length < 2 {
		return m, &ProtocolError{Kind: ErrFrameIntegrity, Field: "LEN", Got: length, Want: 2}
	}

	p := frags[1]
	m.Offset = uint16(p[0]) | uint16(p[1])<<8
	m.Size = uint16(p[2]) | uint16(p[3])<<8

	data := frags[2:length]
	for _, f := range data {
		m.Data = append(m.Data, f[:]...)
	}

	t := frags[length]
	cnt := int(t[0]) | int(t[1]&0xC0)<<2
	if cnt != length {
		return m, &ProtocolError{Kind: ErrFrameIntegrity, Field: "FRAG_CNT", Got: cnt, Want: length}
	}
	pad := int(t[1]&0x30) >> 4
	if len(data) > 0 {
		if want := len(m.Data) - int(m.Size); pad != want {
			return m, &ProtocolError{Kind: ErrFrameIntegrity, Field: "PAD_LEN", Got: pad, Want: want}
		}
		m.Data = m.Data[:m.Size]
	} else if pad != 0 {
		return m, &ProtocolError{Kind: ErrFrameIntegrity, Field: "PAD_LEN", Got: pad, Want: 0}
	}
	return m, nil
}
