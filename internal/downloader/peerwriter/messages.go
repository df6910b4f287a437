package peerwriter

import (
	"github.com/halsten/gorrent/internal/peer"
	"github.com/halsten/gorrent/internal/piece"
)

type Request struct {
	Piece   *piece.Piece
	Request peer.Request
}
