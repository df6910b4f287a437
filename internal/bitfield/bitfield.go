// Package bitfield implements a fixed-length bitmap used for piece
// availability: ours, each peer's, and the scheduler's per-block maps.
package bitfield

import "encoding/hex"

// Bitfield is a fixed-length, mutable bitmap. Bit 0 is the most
// significant bit of the first byte, matching the wire BITFIELD
// message's layout.
type Bitfield struct {
	bytes  []byte
	length uint32
}

// New returns an all-clear Bitfield able to hold length bits.
func New(length uint32) Bitfield {
	return Bitfield{bytes: make([]byte, numBytes(length)), length: length}
}

// All returns a Bitfield with every bit set, the wire equivalent of
// a HAVE_ALL fast-extension message.
func All(length uint32) Bitfield {
	b := New(length)
	for i := range b.bytes {
		b.bytes[i] = 0xff
	}
	b.clearTrailingBits()
	return b
}

// FromBytes wraps an existing byte slice as a Bitfield without
// copying; trailing unused bits in the last byte are cleared. Panics
// if raw is too small to hold length bits.
func FromBytes(raw []byte, length uint32) Bitfield {
	n := numBytes(length)
	if uint32(len(raw)) < n {
		panic("bitfield: not enough bytes for length")
	}
	b := Bitfield{bytes: raw[:n], length: length}
	b.clearTrailingBits()
	return b
}

func numBytes(length uint32) uint32 {
	return (length + 7) / 8
}

func (b *Bitfield) clearTrailingBits() {
	mod := b.length % 8
	if mod != 0 && len(b.bytes) > 0 {
		b.bytes[len(b.bytes)-1] &= ^(byte(0xff) >> mod)
	}
}

// Bytes returns the underlying storage; mutating it mutates b.
func (b *Bitfield) Bytes() []byte { return b.bytes }

// Len returns the number of addressable bits.
func (b *Bitfield) Len() uint32 { return b.length }

// Hex renders the underlying bytes, matching the convention used when
// logging a peer's raw BITFIELD payload.
func (b *Bitfield) Hex() string { return hex.EncodeToString(b.bytes) }

func (b *Bitfield) index(i uint32) (byteIndex uint32, mask byte) {
	if i >= b.length {
		panic("bitfield: index out of range")
	}
	return i / 8, 1 << (7 - i%8)
}

// Set marks bit i as present.
func (b *Bitfield) Set(i uint32) {
	idx, mask := b.index(i)
	b.bytes[idx] |= mask
}

// Clear marks bit i as absent.
func (b *Bitfield) Clear(i uint32) {
	idx, mask := b.index(i)
	b.bytes[idx] &^= mask
}

// SetTo sets or clears bit i depending on v.
func (b *Bitfield) SetTo(i uint32, v bool) {
	if v {
		b.Set(i)
	} else {
		b.Clear(i)
	}
}

// ClearAll resets every bit, the wire equivalent of HAVE_NONE.
func (b *Bitfield) ClearAll() {
	for i := range b.bytes {
		b.bytes[i] = 0
	}
}

// Test reports whether bit i is set.
func (b *Bitfield) Test(i uint32) bool {
	idx, mask := b.index(i)
	return b.bytes[idx]&mask != 0
}

var bitsSet = [256]byte{
	0, 1, 1, 2, 1, 2, 2, 3, 1, 2, 2, 3, 2, 3, 3, 4,
	1, 2, 2, 3, 2, 3, 3, 4, 2, 3, 3, 4, 3, 4, 4, 5,
	1, 2, 2, 3, 2, 3, 3, 4, 2, 3, 3, 4, 3, 4, 4, 5,
	2, 3, 3, 4, 3, 4, 4, 5, 3, 4, 4, 5, 4, 5, 5, 6,
	1, 2, 2, 3, 2, 3, 3, 4, 2, 3, 3, 4, 3, 4, 4, 5,
	2, 3, 3, 4, 3, 4, 4, 5, 3, 4, 4, 5, 4, 5, 5, 6,
	2, 3, 3, 4, 3, 4, 4, 5, 3, 4, 4, 5, 4, 5, 5, 6,
	3, 4, 4, 5, 4, 5, 5, 6, 4, 5, 5, 6, 5, 6, 6, 7,
	1, 2, 2, 3, 2, 3, 3, 4, 2, 3, 3, 4, 3, 4, 4, 5,
	2, 3, 3, 4, 3, 4, 4, 5, 3, 4, 4, 5, 4, 5, 5, 6,
	2, 3, 3, 4, 3, 4, 4, 5, 3, 4, 4, 5, 4, 5, 5, 6,
	3, 4, 4, 5, 4, 5, 5, 6, 4, 5, 5, 6, 5, 6, 6, 7,
	2, 3, 3, 4, 3, 4, 4, 5, 3, 4, 4, 5, 4, 5, 5, 6,
	3, 4, 4, 5, 4, 5, 5, 6, 4, 5, 5, 6, 5, 6, 6, 7,
	3, 4, 4, 5, 4, 5, 5, 6, 4, 5, 5, 6, 5, 6, 6, 7,
	4, 5, 5, 6, 5, 6, 6, 7, 5, 6, 6, 7, 6, 7, 7, 8,
}

// Count returns the number of set bits.
func (b *Bitfield) Count() uint32 {
	var n uint32
	for _, v := range b.bytes {
		n += uint32(bitsSet[v])
	}
	return n
}

// Complete reports whether every bit is set.
func (b *Bitfield) Complete() bool { return b.Count() == b.length }
