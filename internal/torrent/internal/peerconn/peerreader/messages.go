package peerreader

import (
	"github.com/halsten/gorrent/internal/torrent/internal/peerprotocol"
)

type Piece struct {
	peerprotocol.PieceMessage
	Data []byte
}
