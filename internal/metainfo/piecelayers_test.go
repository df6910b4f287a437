package metainfo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"

	"github.com/halsten/gorrent/internal/merkle"
)

func TestPieceLayerTreeBuildsFromPublishedHashes(t *testing.T) {
	data := make([]byte, 4*merkle.BlockSize)
	tree := merkle.Build(data)
	root := tree.Root()

	b, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "torrent",
		"piece length": int64(4 * merkle.BlockSize),
		"meta version": int64(2),
		"file tree": map[string]interface{}{
			"a.bin": map[string]interface{}{
				"": map[string]interface{}{
					"length":      int64(4 * merkle.BlockSize),
					"pieces root": root[:],
				},
			},
		},
		"piece layers": map[string]interface{}{
			"a.bin": root[:],
		},
	})
	require.NoError(t, err)

	info, err := NewInfo(b)
	require.NoError(t, err)
	require.Len(t, info.Files, 1)

	layerTree, err := info.PieceLayerTree(info.Files[0])
	require.NoError(t, err)

	proof, err := layerTree.GenerateProofAtLayer(0, 0)
	require.NoError(t, err)
	require.True(t, merkle.VerifyProof(data, proof, root))
}
