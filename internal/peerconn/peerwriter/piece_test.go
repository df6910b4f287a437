package peerwriter

import (
	"bytes"
	"testing"

	"github.com/halsten/gorrent/internal/peerwire"
)

func BenchmarkRead(b *testing.B) {
	buf := make([]byte, 10)
	buf2 := make([]byte, 25)
	r := bytes.NewReader(buf)
	p := Piece{
		Data: r,
		RequestMessage: peerwire.RequestMessage{
			Begin:  2,
			Length: 5,
		},
	}
	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		p.Read(buf2)
	}
}
