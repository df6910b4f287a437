// Package storage maps torrent pieces onto file regions and drives
// the verify-then-write path for both v1 flat-SHA1 and v2 Merkle
// torrents, honoring BEP 47 padding files. The Storage/File split is
// the teacher's own abstraction for the on-disk backend
// (filestorage), kept so a future backend (e.g. in-memory, for
// tests) only has to implement Open.
package storage

import "io"

// Storage opens the backing file for one torrent file entry, sized
// to size, reporting whether it already existed (and so may already
// hold correct data the caller should verify rather than assume
// MISSING).
type Storage interface {
	Open(name string, size int64) (f File, exists bool, err error)
}

// File is a single torrent file's storage handle.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}
