package metainfo

import (
	"crypto/sha1" // nolint: gosec
	"crypto/sha256"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeebo/bencode"
)

var (
	// ErrInvalidPieceData is returned when the v1 "pieces" field is not
	// a multiple of a SHA-1 digest, or its length disagrees with the
	// declared file lengths by more than one short final piece.
	ErrInvalidPieceData = errors.New("metainfo: invalid piece data")
	// ErrInvalidFileTree is returned when a v2 "file tree" dict is
	// malformed: a node or leaf that does not decode, or an empty
	// directory node. A leaf without "length" is not rejected; its
	// length reads as 0.
	ErrInvalidFileTree = errors.New("metainfo: invalid file tree")
	// ErrInvalidFileName is returned when a file path contains a ".."
	// component.
	ErrInvalidFileName = errors.New("metainfo: invalid file name")
)

// FileEntry is one file in offset order within the torrent's overall
// byte stream, flattened from either the v1 legacy "files" list or
// the v2 "file tree". BEP 47 padding files and symlinks appear here
// like any other entry, distinguished by Attr.
type FileEntry struct {
	Path          []string
	Length        int64
	Offset        int64
	PiecesRoot    [32]byte
	HasPiecesRoot bool
	Attr          string
	SymlinkPath   []string
	SHA1          [20]byte
	HasSHA1       bool
}

// IsPadding reports whether this entry is a BEP 47 padding file,
// written through as zeros and never stored on disk.
func (f FileEntry) IsPadding() bool { return strings.Contains(f.Attr, "p") }

// IsSymlink reports whether this entry is a BEP 47 symlink.
func (f FileEntry) IsSymlink() bool { return strings.Contains(f.Attr, "l") }

// rawInfo mirrors the bencode "info" dictionary exactly as it appears
// on the wire, decoded via zeebo/bencode struct tags the way the
// teacher decodes every bencode dict: typed fields for what's always
// present, bencode.RawMessage for anything that needs a second,
// conditional decode pass.
type rawInfo struct {
	PieceLength int64              `bencode:"piece length"`
	Pieces      []byte             `bencode:"pieces"`
	Private     bencode.RawMessage `bencode:"private"`
	Name        string             `bencode:"name"`
	Length      int64              `bencode:"length"`
	Files       []rawFileDictV1    `bencode:"files"`
	MetaVersion int64              `bencode:"meta version"`
	FileTree    bencode.RawMessage `bencode:"file tree"`
	PieceLayers bencode.RawMessage `bencode:"piece layers"`
}

type rawFileDictV1 struct {
	Length      int64    `bencode:"length"`
	Path        []string `bencode:"path"`
	Attr        string   `bencode:"attr,omitempty"`
	SymlinkPath []string `bencode:"symlink path,omitempty"`
	SHA1        []byte   `bencode:"sha1,omitempty"`
}

// Info is the parsed form of an "info" dictionary, generalized across
// v1 flat-SHA1, v2 Merkle, and hybrid layouts.
type Info struct {
	Name        string
	PieceLength uint32
	Private     bool
	MetaVersion int

	// PiecesV1 is the concatenated 20-byte SHA-1 digests, present for
	// v1-only and hybrid torrents.
	PiecesV1 []byte

	// Files is the flattened, offset-ordered file list: the v2 file
	// tree when present, the legacy v1 list otherwise. For hybrid
	// torrents the two describe the same layout including padding, so
	// the v2 tree (which also carries pieces_root per file) is
	// canonical.
	Files []FileEntry

	// PieceLayers holds each v2 file's published piece-layer hashes
	// (concatenated 32-byte SHA-256 digests), keyed by the '/'-joined
	// path used in the "piece layers" dict.
	PieceLayers map[string][]byte

	IsHybrid bool

	HashV1    [20]byte
	HashV2    [32]byte
	HasHashV2 bool

	TotalLength int64
	NumPieces   uint32

	// Bytes is the raw encoded info dict, the exact bytes HashV1 and
	// HashV2 are computed over.
	Bytes []byte

	private bool
}

// NewInfo parses a bencoded "info" dictionary.
func NewInfo(b []byte) (*Info, error) {
	var raw rawInfo
	if err := bencode.DecodeBytes(b, &raw); err != nil {
		return nil, err
	}
	if uint32(len(raw.Pieces))%sha1.Size != 0 {
		return nil, ErrInvalidPieceData
	}

	hasV1 := len(raw.Pieces) > 0
	hasV2 := raw.MetaVersion == 2 && len(raw.FileTree) > 0
	if !hasV1 && !hasV2 {
		return nil, ErrInvalidPieceData
	}

	info := &Info{
		Name:        raw.Name,
		PieceLength: uint32(raw.PieceLength),
		PiecesV1:    raw.Pieces,
		MetaVersion: int(raw.MetaVersion),
		IsHybrid:    hasV1 && hasV2,
		Bytes:       b,
	}
	info.private = decodePrivate(raw.Private)

	if hasV2 {
		var entries []FileEntry
		var offset int64
		if err := flattenFileTree(raw.FileTree, nil, &entries, &offset); err != nil {
			return nil, err
		}
		info.Files = entries
		info.TotalLength = offset
		if len(raw.PieceLayers) > 0 {
			layers, err := decodePieceLayers(raw.PieceLayers)
			if err != nil {
				return nil, err
			}
			info.PieceLayers = layers
		}
	} else {
		entries, total, err := flattenLegacyFiles(raw.Name, raw.Length, raw.Files)
		if err != nil {
			return nil, err
		}
		info.Files = entries
		info.TotalLength = total
	}

	if hasV1 {
		info.NumPieces = uint32(len(raw.Pieces)) / sha1.Size
		totalPieceDataLength := int64(info.PieceLength) * int64(info.NumPieces)
		delta := totalPieceDataLength - info.TotalLength
		if delta >= int64(info.PieceLength) || delta < 0 {
			return nil, ErrInvalidPieceData
		}
	} else {
		// v2-only: derive piece count from total length, same
		// tolerance for a short final piece.
		if info.PieceLength == 0 {
			return nil, ErrInvalidPieceData
		}
		info.NumPieces = uint32((info.TotalLength + int64(info.PieceLength) - 1) / int64(info.PieceLength))
	}

	hash := sha1.New() // nolint: gosec
	_, _ = hash.Write(b)
	copy(info.HashV1[:], hash.Sum(nil))
	if hasV2 {
		info.HashV2 = sha256.Sum256(b)
		info.HasHashV2 = true
	}
	return info, nil
}

func decodePrivate(raw bencode.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var intVal int64
	if err := bencode.DecodeBytes(raw, &intVal); err == nil {
		return intVal == 1
	}
	var stringVal string
	if err := bencode.DecodeBytes(raw, &stringVal); err == nil {
		return stringVal == "1"
	}
	return false
}

func flattenLegacyFiles(name string, length int64, files []rawFileDictV1) ([]FileEntry, int64, error) {
	if len(files) == 0 {
		return []FileEntry{{Path: []string{name}, Length: length}}, length, nil
	}
	entries := make([]FileEntry, 0, len(files))
	var offset int64
	for _, f := range files {
		if err := validatePath(f.Path); err != nil {
			return nil, 0, err
		}
		entry := FileEntry{
			Path:        f.Path,
			Length:      f.Length,
			Offset:      offset,
			Attr:        f.Attr,
			SymlinkPath: f.SymlinkPath,
		}
		if len(f.SHA1) == 20 {
			copy(entry.SHA1[:], f.SHA1)
			entry.HasSHA1 = true
		}
		entries = append(entries, entry)
		offset += f.Length
	}
	return entries, offset, nil
}

func validatePath(path []string) error {
	for _, p := range path {
		if strings.TrimSpace(p) == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidFileName, filepath.Join(path...))
		}
	}
	return nil
}

func decodePieceLayers(raw bencode.RawMessage) (map[string][]byte, error) {
	var m map[string][]byte
	if err := bencode.DecodeBytes(raw, &m); err != nil {
		return nil, fmt.Errorf("metainfo: piece layers: %w", err)
	}
	return m, nil
}

// MultiFile reports whether the torrent describes more than one file.
func (i *Info) MultiFile() bool { return len(i.Files) > 1 }

// HashOfV1 returns the 20-byte SHA-1 digest for piece index, v1/hybrid only.
func (i *Info) HashOfV1(index uint32) []byte {
	begin := index * sha1.Size
	end := begin + sha1.Size
	return i.PiecesV1[begin:end]
}

// IsPrivate reports whether the torrent's private flag is set.
func (i *Info) IsPrivate() bool {
	if i == nil {
		return false
	}
	return i.private
}
