package peerreader

import (
	"github.com/halsten/gorrent/internal/bufferpool"
	"github.com/halsten/gorrent/internal/peerwire"
)

// Piece message that is read from peers.
// Data of the piece is wrapped with a bufferpool.Buffer object; the
// receiver owns it and must call Release exactly once.
type Piece struct {
	peerwire.PieceMessage
	Buffer *bufferpool.Buffer
}
