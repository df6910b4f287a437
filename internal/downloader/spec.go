package downloader

import (
	"github.com/halsten/gorrent/internal/bitfield"
	"github.com/halsten/gorrent/internal/metainfo"
	"github.com/halsten/gorrent/resume"
	"github.com/halsten/gorrent/storage"
)

// Spec contains parameters for Download constructor.
type Spec struct {
	InfoHash [20]byte
	Storage  storage.Storage
	Resume   resume.DB
	Info     *metainfo.Info
	Bitfield *bitfield.Bitfield
}
