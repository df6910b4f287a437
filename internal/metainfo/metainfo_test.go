package metainfo

import (
	"bytes"
	"crypto/sha1" // nolint: gosec
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"
)

func TestNewParsesAnnounceListAndFiltersUnsupportedTrackers(t *testing.T) {
	piece := make([]byte, 16)
	h := sha1.Sum(piece) // nolint: gosec

	infoBytes, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "file.bin",
		"piece length": int64(16),
		"pieces":       h[:],
		"length":       int64(16),
	})
	require.NoError(t, err)

	top, err := bencode.EncodeBytes(map[string]interface{}{
		"info": bencode.RawMessage(infoBytes),
		"announce-list": []interface{}{
			[]interface{}{"http://a.example/announce", "ftp://b.example/announce"},
			[]interface{}{"udp://c.example:80/announce"},
		},
		"url-list":   "http://seed.example/file.bin",
		"comment":    "test torrent",
		"created by": "gorrent-test",
	})
	require.NoError(t, err)

	mi, err := New(bytes.NewReader(top))
	require.NoError(t, err)

	require.Equal(t, "file.bin", mi.Info.Name)
	require.Equal(t, int64(16), mi.Info.TotalLength)
	require.Equal(t, [][]string{
		{"http://a.example/announce"},
		{"udp://c.example:80/announce"},
	}, mi.AnnounceList)
	require.Equal(t, []string{"http://seed.example/file.bin"}, mi.URLList)
	require.Equal(t, "test torrent", mi.Comment)
}

func TestNewRejectsMissingInfoDict(t *testing.T) {
	top, err := bencode.EncodeBytes(map[string]interface{}{
		"announce": "http://a.example/announce",
	})
	require.NoError(t, err)

	_, err = New(bytes.NewReader(top))
	require.ErrorIs(t, err, ErrNoInfoDict)
}
