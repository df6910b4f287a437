package metainfo

import (
	"fmt"
	"sort"

	"github.com/zeebo/bencode"
)

type fileTreeLeaf struct {
	Length      int64    `bencode:"length"`
	PiecesRoot  []byte   `bencode:"pieces root,omitempty"`
	Attr        string   `bencode:"attr,omitempty"`
	SymlinkPath []string `bencode:"symlink path,omitempty"`
	SHA1        []byte   `bencode:"sha1,omitempty"`
}

// flattenFileTree walks a BEP 52 "file tree" dict depth-first in
// lexicographic key order, the same order the dict is already
// encoded in, and appends one FileEntry per leaf (a node holding a ""
// key), accumulating Offset across entries seen so far.
func flattenFileTree(raw bencode.RawMessage, prefix []string, out *[]FileEntry, offset *int64) error {
	var node map[string]bencode.RawMessage
	if err := bencode.DecodeBytes(raw, &node); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFileTree, err)
	}
	if leafRaw, ok := node[""]; ok {
		var leaf fileTreeLeaf
		if err := bencode.DecodeBytes(leafRaw, &leaf); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFileTree, err)
		}
		if err := validatePath(prefix); err != nil {
			return err
		}
		entry := FileEntry{
			Path:        append([]string{}, prefix...),
			Length:      leaf.Length,
			Offset:      *offset,
			Attr:        leaf.Attr,
			SymlinkPath: leaf.SymlinkPath,
		}
		if len(leaf.PiecesRoot) == 32 {
			copy(entry.PiecesRoot[:], leaf.PiecesRoot)
			entry.HasPiecesRoot = true
		}
		if len(leaf.SHA1) == 20 {
			copy(entry.SHA1[:], leaf.SHA1)
			entry.HasSHA1 = true
		}
		*out = append(*out, entry)
		*offset += leaf.Length
		return nil
	}
	if len(node) == 0 {
		return fmt.Errorf("%w: empty node at %v", ErrInvalidFileTree, prefix)
	}
	names := make([]string, 0, len(node))
	for name := range node {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		next := make([]string, len(prefix)+1)
		copy(next, prefix)
		next[len(prefix)] = name
		if err := flattenFileTree(node[name], next, out, offset); err != nil {
			return err
		}
	}
	return nil
}
