package metainfo

import (
	"fmt"
	"strings"

	"github.com/halsten/gorrent/internal/merkle"
)

// pieceLayerKey is the '/'-joined path used as the "piece layers"
// dict key for a file tree entry.
func pieceLayerKey(path []string) string { return strings.Join(path, "/") }

// PieceLayerTree builds the reduced Merkle tree for f from this
// Info's published piece layer, suitable for GenerateProofAtLayer(0,
// pieceIndex) and, ultimately, verification against f.PiecesRoot.
func (i *Info) PieceLayerTree(f FileEntry) (*merkle.Tree, error) {
	raw, ok := i.PieceLayers[pieceLayerKey(f.Path)]
	if !ok {
		return nil, fmt.Errorf("metainfo: no piece layer for %q", pieceLayerKey(f.Path))
	}
	if len(raw)%merkle.HashSize != 0 {
		return nil, fmt.Errorf("metainfo: piece layer for %q is not a multiple of %d bytes", pieceLayerKey(f.Path), merkle.HashSize)
	}
	hashes := make([]merkle.Hash, len(raw)/merkle.HashSize)
	for idx := range hashes {
		copy(hashes[idx][:], raw[idx*merkle.HashSize:(idx+1)*merkle.HashSize])
	}
	return merkle.BuildFromPieceLayer(hashes), nil
}
