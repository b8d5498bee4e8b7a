// internal/mailbox/encode.go
package mailbox

// Encode builds the fragment sequence of one message.
//
// Message layout:
//
//	preamble:  [A1][B2][CMD<<2 | LEN&3][LEN>>2]
//	params:    [OFF_L][OFF_H][SIZE_L][SIZE_H]      (HasParams)
//	data:      [D0][D1][D2][D3] ...                (HasSetupData, zero padded)
//	trailing:  [CNT_L][CNT_H<<6 | PAD<<4][00][00]  (HasParams)
//
// fragLen is the frame length the caller declares in the preamble. It must
// equal the number of fragments emitted after the preamble; otherwise Encode
// fails with ErrFragmentCountMismatch.
func Encode(cmd Command, req *Request, fragLen int) ([]Fragment, error) {
	d, ok := cmd.Descriptor()
	if !ok {
		return nil, invalid("unsupported command 0x%x", uint8(cmd))
	}
	if fragLen < 0 || fragLen > maxFragments {
		return nil, invalid("frame length %d out of range", fragLen)
	}

	frags := make([]Fragment, 0, 1+fragLen)
	frags = append(frags, preambleFragment(cmd, fragLen))

	if !d.HasParams {
		// Preamble only.
		if fragLen != 0 {
			return nil, &ProtocolError{Kind: ErrFragmentCountMismatch, Field: "LEN", Got: 0, Want: fragLen}
		}
		return frags, nil
	}

	if req == nil {
		return nil, invalid("%s needs a request", cmd)
	}

	var (
		cnt     int
		padding int
	)

	frags = append(frags, Fragment{
		byte(req.Offset), byte(req.Offset >> 8),
		byte(req.SetLen), byte(req.SetLen >> 8),
	})
	cnt++

	if d.HasSetupData {
		if len(req.SetData) < int(req.SetLen) {
			return nil, invalid("payload has %d bytes, size field says %d", len(req.SetData), req.SetLen)
		}
		data := req.SetData[:req.SetLen]
		for len(data) > 0 {
			var f Fragment
			n := copy(f[:], data)
			data = data[n:]
			frags = append(frags, f)
			cnt++
		}
		padding = Pad(int(req.SetLen))
	}

	cnt++
	frags = append(frags, trailingFragment(cnt, padding))

	if cnt != fragLen {
		return nil, &ProtocolError{Kind: ErrFragmentCountMismatch, Field: "LEN", Got: cnt, Want: fragLen}
	}
	return frags, nil
}

func preambleFragment(cmd Command, fragLen int) Fragment {
	return Fragment{
		preambleLo,
		preambleHi,
		byte(cmd)<<2 | byte(fragLen&0x3),
		byte(fragLen >> 2),
	}
}

func trailingFragment(cnt, padding int) Fragment {
	return Fragment{
		byte(cnt),
		byte((cnt>>8)<<6) | byte(padding<<4),
		0,
		0,
	}
}

// SplitLength extracts the 10-bit length from bytes 2 and 3 of a preamble.
func SplitLength(b2, b3 byte) int {
	return int(b2&0x3) | int(b3)<<2
}
