package merkle

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildProofVerifyRoundTrip(t *testing.T) {
	// 8 blocks of data, piece length = 2 blocks -> 4 pieces.
	data := make([]byte, 8*BlockSize)
	_, err := rand.Read(data)
	require.NoError(t, err)

	tree := Build(data)
	pieceLength := uint32(2 * BlockSize)
	numPieces := len(data) / int(pieceLength)

	for i := 0; i < numPieces; i++ {
		proof, err := tree.GenerateProof(pieceLength, uint32(i))
		require.NoError(t, err)
		start := i * int(pieceLength)
		end := start + int(pieceLength)
		ok := VerifyProof(data[start:end], proof, tree.Root())
		require.True(t, ok, "piece %d should verify", i)
	}
}

func TestVerifyProofRejectsCorruption(t *testing.T) {
	data := make([]byte, 4*BlockSize)
	_, err := rand.Read(data)
	require.NoError(t, err)
	tree := Build(data)
	pieceLength := uint32(BlockSize)

	proof, err := tree.GenerateProof(pieceLength, 0)
	require.NoError(t, err)
	corrupted := make([]byte, BlockSize)
	copy(corrupted, data[:BlockSize])
	corrupted[0] ^= 0xff
	require.False(t, VerifyProof(corrupted, proof, tree.Root()))
}

func TestSelectLayer(t *testing.T) {
	l, err := SelectLayer(BlockSize)
	require.NoError(t, err)
	require.Equal(t, 0, l)

	l, err = SelectLayer(4 * BlockSize)
	require.NoError(t, err)
	require.Equal(t, 2, l)

	_, err = SelectLayer(BlockSize + 1)
	require.Error(t, err)
}

func TestLayerCacheEvictsLRU(t *testing.T) {
	c := NewLayerCache(treeByteFootprint(Build(make([]byte, 2*BlockSize))) + 1)
	small := Build(make([]byte, 2*BlockSize))
	c.Put("a", small)
	c.Put("b", small)
	// "a" should have been evicted to make room for "b".
	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
}
