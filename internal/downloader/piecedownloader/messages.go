package piecedownloader

import (
	"github.com/halsten/gorrent/internal/pieceio"
)

type Piece struct {
	Block *pieceio.Block
	Data  []byte
}
