package metainfo

import (
	"crypto/sha1" // nolint: gosec
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"
)

func sha1Of(b []byte) []byte {
	h := sha1.Sum(b) // nolint: gosec
	return h[:]
}

func TestNewInfoV1SingleFile(t *testing.T) {
	piece := make([]byte, 16)
	pieces := sha1Of(piece)

	b, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "file.bin",
		"piece length": int64(16),
		"pieces":       pieces,
		"length":       int64(16),
	})
	require.NoError(t, err)

	info, err := NewInfo(b)
	require.NoError(t, err)
	require.False(t, info.IsHybrid)
	require.Equal(t, uint32(1), info.NumPieces)
	require.Equal(t, int64(16), info.TotalLength)
	require.Len(t, info.Files, 1)
	require.Equal(t, []string{"file.bin"}, info.Files[0].Path)
	require.False(t, info.HasHashV2)
}

func TestNewInfoV1MultiFileRejectsDotDot(t *testing.T) {
	b, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "torrent",
		"piece length": int64(16),
		"pieces":       sha1Of(make([]byte, 16)),
		"files": []interface{}{
			map[string]interface{}{"length": int64(16), "path": []interface{}{"..", "evil"}},
		},
	})
	require.NoError(t, err)

	_, err = NewInfo(b)
	require.ErrorIs(t, err, ErrInvalidFileName)
}

func TestNewInfoV2FileTree(t *testing.T) {
	b, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "torrent",
		"piece length": int64(16 * 1024),
		"meta version": int64(2),
		"file tree": map[string]interface{}{
			"a.bin": map[string]interface{}{
				"": map[string]interface{}{
					"length":      int64(16 * 1024),
					"pieces root": make([]byte, 32),
				},
			},
		},
	})
	require.NoError(t, err)

	info, err := NewInfo(b)
	require.NoError(t, err)
	require.True(t, info.HasHashV2)
	require.False(t, info.IsHybrid)
	require.Len(t, info.Files, 1)
	require.Equal(t, []string{"a.bin"}, info.Files[0].Path)
	require.True(t, info.Files[0].HasPiecesRoot)
	require.Equal(t, int64(16*1024), info.TotalLength)
}

func TestNewInfoHybridHasBothHashes(t *testing.T) {
	piece := make([]byte, 16*1024)
	b, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "torrent",
		"piece length": int64(16 * 1024),
		"pieces":       sha1Of(piece),
		"length":       int64(16 * 1024),
		"meta version": int64(2),
		"file tree": map[string]interface{}{
			"torrent": map[string]interface{}{
				"": map[string]interface{}{
					"length":      int64(16 * 1024),
					"pieces root": make([]byte, 32),
				},
			},
		},
	})
	require.NoError(t, err)

	info, err := NewInfo(b)
	require.NoError(t, err)
	require.True(t, info.IsHybrid)
	require.True(t, info.HasHashV2)
}

func TestNewInfoRejectsBadPieceData(t *testing.T) {
	b, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "torrent",
		"piece length": int64(16),
		"pieces":       []byte{1, 2, 3}, // not a multiple of 20
	})
	require.NoError(t, err)

	_, err = NewInfo(b)
	require.ErrorIs(t, err, ErrInvalidPieceData)
}
