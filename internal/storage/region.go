package storage

import (
	"path/filepath"

	"github.com/halsten/gorrent/internal/metainfo"
)

// region is one (file, offset, length) span a piece covers.
type region struct {
	file   File
	offset int64
	length int64
}

// pieceLayout is one piece's region list plus whatever is needed to
// verify it.
type pieceLayout struct {
	index      uint32
	length     uint32
	regions    []region
	hashV1     []byte // nil unless the torrent carries v1 data
	file       *metainfo.FileEntry
	fileOffset int64 // piece's offset within file, for v2 proof generation
}

// buildPieceLayoutsFromHandles maps every piece index to the file
// regions it spans, given handles already opened in info.Files order
// (padding entries hold a PaddingFile). Grounded on the teacher's
// internal/piece.NewPieces, generalized to carry the owning FileEntry
// (for v2 Merkle verification) alongside the v1 hash slice.
func buildPieceLayoutsFromHandles(info *metainfo.Info, handles []File) ([]pieceLayout, []File, error) {
	layouts := make([]pieceLayout, info.NumPieces)
	var fileIndex int
	var fileOffset int64

	nextFile := func() {
		fileIndex++
		fileOffset = 0
	}
	fileLeft := func() int64 {
		if fileIndex >= len(info.Files) {
			return 0
		}
		return info.Files[fileIndex].Length - fileOffset
	}

	var total int64
	for i := uint32(0); i < info.NumPieces; i++ {
		pl := pieceLayout{index: i}
		if len(info.PiecesV1) > 0 {
			pl.hashV1 = info.HashOfV1(i)
		}

		var pieceOffset uint32
		pieceLeft := func() uint32 { return info.PieceLength - pieceOffset }

		for pieceLeft() > 0 && total < info.TotalLength {
			for fileLeft() == 0 && fileIndex < len(info.Files)-1 {
				nextFile()
			}
			f := info.Files[fileIndex]
			n := minInt64(int64(pieceLeft()), fileLeft())
			if n <= 0 {
				break
			}
			if pl.file == nil && !f.IsPadding() {
				ff := f
				pl.file = &ff
				pl.fileOffset = fileOffset
			}
			pl.regions = append(pl.regions, region{
				file:   handles[fileIndex],
				offset: fileOffset,
				length: n,
			})
			pieceOffset += uint32(n)
			pl.length += uint32(n)
			fileOffset += n
			total += n
			if fileLeft() == 0 && fileIndex < len(info.Files)-1 {
				nextFile()
			}
		}
		layouts[i] = pl
	}
	return layouts, handles, nil
}

// filePathFor joins a torrent's name with a file entry's path
// components, the same layout the teacher's prepareFiles uses for
// multi-file torrents.
func filePathFor(info *metainfo.Info, f metainfo.FileEntry) string {
	parts := append([]string{info.Name}, f.Path...)
	return filepath.Join(parts...)
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
