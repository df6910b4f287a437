// Package filestorage is the on-disk storage.Storage backend: every
// torrent file lives under one destination directory, opened once and
// truncated (or created) to its declared length.
package filestorage

import (
	"os"
	"path/filepath"

	"github.com/halsten/gorrent/internal/storage"
)

// FileStorage roots every opened file under dest.
type FileStorage struct {
	dest string
}

// New returns a FileStorage rooted at dest, resolved to an absolute path.
func New(dest string) (*FileStorage, error) {
	dest, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	return &FileStorage{dest: dest}, nil
}

var _ storage.Storage = (*FileStorage)(nil)

// Dest returns the resolved destination directory.
func (s *FileStorage) Dest() string { return s.dest }

// Open opens (creating if necessary) the file at name, sized to size,
// under s.Dest(). It reports whether the file already existed so the
// caller can verify its piece(s) rather than assume MISSING data.
func (s *FileStorage) Open(name string, size int64) (storage.File, bool, error) {
	name = filepath.Join(s.dest, filepath.Clean(name))

	if err := os.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return nil, false, err
	}

	const mode = 0o640
	of, err := os.OpenFile(name, os.O_RDWR, mode) // nolint: gosec
	if os.IsNotExist(err) {
		of, err = os.OpenFile(name, os.O_RDWR|os.O_CREATE, mode) // nolint: gosec
		if err != nil {
			return nil, false, err
		}
		if err := of.Truncate(size); err != nil {
			_ = of.Close()
			return nil, false, err
		}
		_ = disableReadAhead(of)
		return &File{File: of}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	fi, err := of.Stat()
	if err != nil {
		_ = of.Close()
		return nil, false, err
	}
	if fi.Size() != size {
		if err := of.Truncate(size); err != nil {
			_ = of.Close()
			return nil, false, err
		}
	}
	_ = disableReadAhead(of)
	return &File{File: of}, true, nil
}
