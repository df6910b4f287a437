package storage

import (
	"fmt"

	"github.com/halsten/gorrent/internal/metainfo"
)

// Writer owns the open File handles backing one torrent's data and
// the per-piece region layout derived from its Info.
type Writer struct {
	info  *metainfo.Info
	mode  Mode
	files []File // parallel to info.Files; padding entries are PaddingFile

	layouts []pieceLayout
}

// Existed reports, per file index, whether that file already existed
// on the backing Storage when Open returned it (the caller should
// verify those pieces on startup rather than assume MISSING).
type Existed []bool

// Open builds a Writer against an already-constructed Storage
// backend, opening every non-padding file at its declared length.
func Open(info *metainfo.Info, s Storage) (*Writer, Existed, error) {
	existed := make(Existed, len(info.Files))
	handles := make([]File, len(info.Files))
	for i, f := range info.Files {
		if f.IsPadding() {
			handles[i] = NewPaddingFile(f.Length)
			continue
		}
		h, exists, err := s.Open(filePathFor(info, f), f.Length)
		if err != nil {
			closeHandles(handles)
			return nil, nil, err
		}
		handles[i] = h
		existed[i] = exists
	}

	layouts, _, err := buildPieceLayoutsFromHandles(info, handles)
	if err != nil {
		closeHandles(handles)
		return nil, nil, err
	}

	return &Writer{info: info, mode: modeFor(info), files: handles, layouts: layouts}, existed, nil
}

func closeHandles(files []File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

// NumPieces returns the piece count of the underlying torrent.
func (w *Writer) NumPieces() uint32 { return w.info.NumPieces }

// PieceLength returns the length of piece index, accounting for a
// short final piece.
func (w *Writer) PieceLength(index uint32) uint32 {
	if int(index) >= len(w.layouts) {
		return 0
	}
	return w.layouts[index].length
}

// Mode reports which hash(es) this torrent's pieces verify against.
func (w *Writer) Mode() Mode { return w.mode }

// ReadPiece reads a whole piece into buf, for startup verification or
// serving upload requests.
func (w *Writer) ReadPiece(index uint32, buf []byte) error {
	if int(index) >= len(w.layouts) {
		return fmt.Errorf("storage: piece index %d out of range", index)
	}
	return readAt(w.layouts[index].regions, buf)
}

// Verify checks data (exactly one piece's worth of bytes) against
// this torrent's verify mode, without writing it.
func (w *Writer) Verify(index uint32, data []byte) (bool, error) {
	if int(index) >= len(w.layouts) {
		return false, fmt.Errorf("storage: piece index %d out of range", index)
	}
	return verify(w.info, w.layouts[index], data, w.mode)
}

// WritePiece writes already-verified piece bytes to their file
// regions. Invariant: a piece is written at most once; callers must
// verify before calling WritePiece, and must not call it twice for
// the same index.
func (w *Writer) WritePiece(index uint32, data []byte) error {
	if int(index) >= len(w.layouts) {
		return fmt.Errorf("storage: piece index %d out of range", index)
	}
	_, err := writeAt(w.layouts[index].regions, data)
	return err
}

// Close closes every open file handle.
func (w *Writer) Close() error {
	var firstErr error
	for _, f := range w.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
