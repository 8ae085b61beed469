package dist

import "encoding/binary"

// Framer extracts length-prefixed packets from a growing byte buffer.
// The length prefix width is stateful: 2 bytes before the handshake
// completes, 4 bytes once Connected (spec.md §4.1). Framer itself never
// decides when to flip; the Connection does that at the moment it
// transitions to Connected.
type Framer struct {
	prefixWidth int
}

// NewFramer creates a Framer starting in the 2-byte-prefix handshake mode.
func NewFramer() *Framer {
	return &Framer{prefixWidth: 2}
}

// SetPrefixWidth flips the prefix width. Only 2 and 4 are valid.
func (f *Framer) SetPrefixWidth(w int) {
	if w != 2 && w != 4 {
		panic("dist: invalid frame prefix width")
	}
	f.prefixWidth = w
}

// PrefixWidth reports the current prefix width.
func (f *Framer) PrefixWidth() int {
	return f.prefixWidth
}

// Consume attempts to extract one complete packet from the front of buf.
// It returns the packet (nil if none is complete yet), the remaining
// unconsumed buffer, and whether a complete packet was found. buf is
// never mutated; ok reflects only whether enough bytes were buffered,
// never a decode error — decode errors are the caller's concern once it
// has the packet bytes.
func (f *Framer) Consume(buf []byte) (packet []byte, rest []byte, ok bool) {
	if len(buf) < f.prefixWidth {
		return nil, buf, false
	}

	var pktSize int
	if f.prefixWidth == 2 {
		pktSize = int(binary.BigEndian.Uint16(buf[:2]))
	} else {
		pktSize = int(binary.BigEndian.Uint32(buf[:4]))
	}

	total := f.prefixWidth + pktSize
	if len(buf) < total {
		return nil, buf, false
	}

	return buf[f.prefixWidth:total], buf[total:], true
}
