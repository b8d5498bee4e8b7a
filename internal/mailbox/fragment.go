// internal/mailbox/fragment.go
package mailbox

import (
	"encoding/binary"
	"fmt"
)

// Fragment is one 4-byte unit of mailbox I/O.
// Byte 0 is the least significant byte of the register value.
type Fragment [FragmentSize]byte

// FragmentOf converts a mailbox register value into its fragment bytes.
func FragmentOf(word uint32) Fragment {
	var f Fragment
	binary.LittleEndian.PutUint32(f[:], word)
	return f
}

// Word returns the register value that carries f.
func (f Fragment) Word() uint32 {
	return binary.LittleEndian.Uint32(f[:])
}

func (f Fragment) String() string {
	return fmt.Sprintf("%02x %02x %02x %02x", f[0], f[1], f[2], f[3])
}
