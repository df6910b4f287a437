package storage

import (
	"crypto/sha1" // nolint: gosec
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"

	"github.com/halsten/gorrent/internal/merkle"
	"github.com/halsten/gorrent/internal/metainfo"
)

// memFile is an in-memory File for tests, avoiding any disk access.
type memFile struct {
	data []byte
}

func newMemFile(size int64) *memFile { return &memFile{data: make([]byte, size)} }

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, f.data[off:])
	return n, nil
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	n := copy(f.data[off:], p)
	return n, nil
}

func (f *memFile) Close() error { return nil }

// memStorage hands out memFiles and records which names were opened.
type memStorage struct {
	files map[string]*memFile
}

func newMemStorage() *memStorage { return &memStorage{files: map[string]*memFile{}} }

func (s *memStorage) Open(name string, size int64) (File, bool, error) {
	if f, ok := s.files[name]; ok {
		return f, true, nil
	}
	f := newMemFile(size)
	s.files[name] = f
	return f, false, nil
}

func buildV1Info(t *testing.T, pieceLength int64, pieceBytes []byte) *metainfo.Info {
	t.Helper()
	sum := sha1.Sum(pieceBytes) // nolint: gosec
	b, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "torrent",
		"piece length": pieceLength,
		"pieces":       sum[:],
		"length":       int64(len(pieceBytes)),
	})
	require.NoError(t, err)
	info, err := metainfo.NewInfo(b)
	require.NoError(t, err)
	return info
}

func TestWriterVerifyAndWriteV1(t *testing.T) {
	data := []byte("0123456789ABCDEF") // 16 bytes, one piece
	info := buildV1Info(t, 16, data)

	s := newMemStorage()
	w, existed, err := Open(info, s)
	require.NoError(t, err)
	defer w.Close()
	require.False(t, existed[0])

	ok, err := w.Verify(0, data)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, w.WritePiece(0, data))

	readBack := make([]byte, 16)
	require.NoError(t, w.ReadPiece(0, readBack))
	require.Equal(t, data, readBack)
}

func TestWriterVerifyRejectsCorruptData(t *testing.T) {
	data := []byte("0123456789ABCDEF")
	info := buildV1Info(t, 16, data)

	s := newMemStorage()
	w, _, err := Open(info, s)
	require.NoError(t, err)
	defer w.Close()

	corrupt := []byte("XXXXXXXXXXXXXXXX")
	ok, err := w.Verify(0, corrupt)
	require.NoError(t, err)
	require.False(t, ok)
}

func buildHybridInfo(t *testing.T, pieceLength int64, pieceBytes []byte, corruptV2Root bool) *metainfo.Info {
	t.Helper()
	sum := sha1.Sum(pieceBytes) // nolint: gosec
	treeRoot := merkle.Build(pieceBytes).Root()
	root := treeRoot[:]
	if corruptV2Root {
		root = make([]byte, 32)
	}
	b, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "torrent",
		"piece length": pieceLength,
		"pieces":       sum[:],
		"length":       int64(len(pieceBytes)),
		"meta version": int64(2),
		"file tree": map[string]interface{}{
			"torrent": map[string]interface{}{
				"": map[string]interface{}{
					"length":      int64(len(pieceBytes)),
					"pieces root": root,
				},
			},
		},
	})
	require.NoError(t, err)
	info, err := metainfo.NewInfo(b)
	require.NoError(t, err)
	return info
}

func TestWriterHybridAgreementVerifies(t *testing.T) {
	data := make([]byte, 16*1024)
	for i := range data {
		data[i] = byte(i)
	}
	info := buildHybridInfo(t, int64(len(data)), data, false)

	s := newMemStorage()
	w, _, err := Open(info, s)
	require.NoError(t, err)
	defer w.Close()

	ok, err := w.Verify(0, data)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWriterHybridMismatchIsSevere(t *testing.T) {
	data := make([]byte, 16*1024)
	info := buildHybridInfo(t, int64(len(data)), data, true)

	s := newMemStorage()
	w, _, err := Open(info, s)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Verify(0, data)
	require.ErrorIs(t, err, ErrHybridMismatch)
}

func TestPaddingFileReadsZeroAndIsNeverWritten(t *testing.T) {
	// Two real files padded to a 16-byte boundary by an 8-byte pad.
	fileA := []byte("AAAAAAAA") // 8 bytes
	pad := int64(8)
	fileB := []byte("BBBBBBBB") // 8 bytes
	piece := append(append(append([]byte{}, fileA...), make([]byte, pad)...), fileB...)
	sum := sha1.Sum(piece) // nolint: gosec

	b, err := bencode.EncodeBytes(map[string]interface{}{
		"name":         "torrent",
		"piece length": int64(len(piece)),
		"pieces":       sum[:],
		"files": []interface{}{
			map[string]interface{}{"length": int64(len(fileA)), "path": []interface{}{"a.bin"}},
			map[string]interface{}{"length": pad, "path": []interface{}{".pad", "8"}, "attr": "p"},
			map[string]interface{}{"length": int64(len(fileB)), "path": []interface{}{"b.bin"}},
		},
	})
	require.NoError(t, err)
	info, err := metainfo.NewInfo(b)
	require.NoError(t, err)
	require.True(t, info.Files[1].IsPadding())

	s := newMemStorage()
	w, _, err := Open(info, s)
	require.NoError(t, err)
	defer w.Close()

	ok, err := w.Verify(0, piece)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, w.WritePiece(0, piece))

	// Nothing named after the padding file was ever opened on the
	// backing Storage: its path never reaches Storage.Open.
	for name := range s.files {
		require.NotContains(t, name, ".pad")
	}

	readBack := make([]byte, len(piece))
	require.NoError(t, w.ReadPiece(0, readBack))
	require.Equal(t, piece, readBack)
}
