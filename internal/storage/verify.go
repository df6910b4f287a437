package storage

import (
	"bytes"
	"crypto/sha1" // nolint: gosec
	"fmt"

	"github.com/halsten/gorrent/internal/merkle"
	"github.com/halsten/gorrent/internal/metainfo"
)

// Mode selects which hash(es) a piece is verified against.
type Mode int

const (
	// ModeV1 verifies the flat SHA-1 digest only.
	ModeV1 Mode = iota
	// ModeV2 verifies the Merkle proof against pieces_root only.
	ModeV2
	// ModeHybrid verifies both and requires them to agree.
	ModeHybrid
)

// ErrHybridMismatch is raised when a hybrid torrent's v1 SHA-1 and v2
// Merkle proof disagree on the same piece bytes. Per spec this is a
// severe error: it aborts the download, not just the piece.
var ErrHybridMismatch = fmt.Errorf("storage: v1 and v2 hashes disagree on piece data")

func modeFor(info *metainfo.Info) Mode {
	switch {
	case info.IsHybrid:
		return ModeHybrid
	case info.HasHashV2:
		return ModeV2
	default:
		return ModeV1
	}
}

func verifyV1(data []byte, hash []byte) bool {
	sum := sha1.Sum(data) // nolint: gosec
	return bytes.Equal(sum[:], hash)
}

func verifyV2(info *metainfo.Info, pl pieceLayout, data []byte) (bool, error) {
	if pl.file == nil || !pl.file.HasPiecesRoot {
		return false, fmt.Errorf("storage: piece %d has no v2 file mapping", pl.index)
	}
	pieceIndexInFile := uint32(pl.fileOffset / int64(info.PieceLength))
	numPiecesInFile := (pl.file.Length + int64(info.PieceLength) - 1) / int64(info.PieceLength)
	if numPiecesInFile <= 1 {
		// The whole file is one piece: its piece-layer hash is the
		// file's pieces_root directly, no published layer needed.
		return merkle.VerifyProof(data, merkle.Proof{PieceIndex: 0}, pl.file.PiecesRoot), nil
	}
	tree, err := info.PieceLayerTree(*pl.file)
	if err != nil {
		return false, err
	}
	proof, err := tree.GenerateProofAtLayer(0, pieceIndexInFile)
	if err != nil {
		return false, err
	}
	return merkle.VerifyProof(data, proof, pl.file.PiecesRoot), nil
}

// verify dispatches to v1, v2, or both per mode, returning ok=false
// (not an error) for an ordinary hash mismatch, and a non-nil error
// only for ErrHybridMismatch or a structural problem reading the v2
// tree.
func verify(info *metainfo.Info, pl pieceLayout, data []byte, mode Mode) (bool, error) {
	switch mode {
	case ModeV1:
		return verifyV1(data, pl.hashV1), nil
	case ModeV2:
		return verifyV2(info, pl, data)
	case ModeHybrid:
		okV1 := verifyV1(data, pl.hashV1)
		okV2, err := verifyV2(info, pl, data)
		if err != nil {
			return false, err
		}
		if okV1 != okV2 {
			return false, ErrHybridMismatch
		}
		return okV1, nil
	default:
		return false, fmt.Errorf("storage: unknown verify mode %d", mode)
	}
}
