// Package metainfo parses .torrent files: v1 flat-SHA1, v2 Merkle,
// and hybrid layouts, multi-tracker announce lists, and webseed
// url-lists.
package metainfo

import (
	"errors"
	"io"

	"github.com/zeebo/bencode"
)

// ErrNoInfoDict is returned when a torrent file has no "info" key.
var ErrNoInfoDict = errors.New("metainfo: no info dict in torrent file")

// MetaInfo is the fully decoded contents of a .torrent file.
type MetaInfo struct {
	Info         Info
	AnnounceList [][]string
	URLList      []string
	Comment      string
	CreatedBy    string
}

// New decodes a torrent file from r.
func New(r io.Reader) (*MetaInfo, error) {
	var top struct {
		Info         bencode.RawMessage `bencode:"info"`
		Announce     bencode.RawMessage `bencode:"announce"`
		AnnounceList bencode.RawMessage `bencode:"announce-list"`
		URLList      URLList            `bencode:"url-list"`
		Comment      string             `bencode:"comment"`
		CreatedBy    string             `bencode:"created by"`
	}
	if err := bencode.NewDecoder(r).Decode(&top); err != nil {
		return nil, err
	}
	if len(top.Info) == 0 {
		return nil, ErrNoInfoDict
	}

	info, err := NewInfo(top.Info)
	if err != nil {
		return nil, err
	}

	mi := &MetaInfo{
		Info:      *info,
		URLList:   []string(top.URLList),
		Comment:   top.Comment,
		CreatedBy: top.CreatedBy,
	}

	if len(top.AnnounceList) > 0 {
		var tiers [][]string
		if err := bencode.DecodeBytes(top.AnnounceList, &tiers); err == nil {
			for _, tier := range tiers {
				var supported []string
				for _, t := range tier {
					if isTrackerSupported(t) {
						supported = append(supported, t)
					}
				}
				if len(supported) > 0 {
					mi.AnnounceList = append(mi.AnnounceList, supported)
				}
			}
		}
	} else if len(top.Announce) > 0 {
		var s string
		if err := bencode.DecodeBytes(top.Announce, &s); err == nil && isTrackerSupported(s) {
			mi.AnnounceList = append(mi.AnnounceList, []string{s})
		}
	}

	return mi, nil
}

func isTrackerSupported(s string) bool {
	return hasAnyPrefix(s, "http://", "https://", "udp://")
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}
