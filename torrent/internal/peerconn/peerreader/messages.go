package peerreader

import (
	"github.com/halsten/gorrent/torrent/internal/peerprotocol"
)

type Piece struct {
	peerprotocol.PieceMessage
	Data []byte
}
