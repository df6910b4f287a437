// Package bencode implements a generic bencode value tree: integers,
// byte-strings, lists and dictionaries. Unlike github.com/zeebo/bencode,
// which decodes directly into Go structs, this package exposes the raw
// value shape so callers that need exact round-tripping (dict key order,
// raw byte-strings) can work with it directly.
package bencode

import (
	"errors"
	"fmt"
	"sort"
)

// Kind identifies the shape of a Value.
type Kind int

// The four bencode value kinds.
const (
	KindInt Kind = iota
	KindString
	KindList
	KindDict
)

// ErrInvalidFormat is returned for any malformed bencode input.
// It corresponds to the BENCODE_INVALID_FORMAT fault kind.
var ErrInvalidFormat = errors.New("bencode: invalid format")

// Value is a decoded bencode value. Exactly one of the fields is
// meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Int  int64
	Str  []byte
	List []Value
	Dict []DictEntry
}

// DictEntry is a single key/value pair of a dictionary, preserving
// the key's raw bytes.
type DictEntry struct {
	Key   []byte
	Value Value
}

// Get returns the value for key in a dict Value, and whether it was found.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindDict {
		return Value{}, false
	}
	for _, e := range v.Dict {
		if string(e.Key) == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Int64 returns the bencode value as int64, a wrong-kind integer (0)
// otherwise.
func Int64(v Value) int64 { return v.Int }

// Bytes returns the raw bytes of a string Value.
func Bytes(v Value) []byte { return v.Str }

// Decode parses exactly one bencode value from b and returns it along
// with the number of bytes consumed. It returns ErrInvalidFormat for
// any malformed input.
func Decode(b []byte) (Value, int, error) {
	return decodeValue(b, 0)
}

// DecodeAll parses b as a single bencode value and fails if trailing
// bytes remain, matching the "decode ∘ encode is the identity" property.
func DecodeAll(b []byte) (Value, error) {
	v, n, err := decodeValue(b, 0)
	if err != nil {
		return Value{}, err
	}
	if n != len(b) {
		return Value{}, fmt.Errorf("%w: trailing data", ErrInvalidFormat)
	}
	return v, nil
}

func decodeValue(b []byte, pos int) (Value, int, error) {
	if pos >= len(b) {
		return Value{}, pos, ErrInvalidFormat
	}
	switch {
	case b[pos] == 'i':
		return decodeInt(b, pos)
	case b[pos] == 'l':
		return decodeList(b, pos)
	case b[pos] == 'd':
		return decodeDict(b, pos)
	case b[pos] >= '0' && b[pos] <= '9':
		return decodeString(b, pos)
	default:
		return Value{}, pos, ErrInvalidFormat
	}
}

func decodeInt(b []byte, pos int) (Value, int, error) {
	end := indexByte(b, pos+1, 'e')
	if end < 0 {
		return Value{}, pos, ErrInvalidFormat
	}
	digits := b[pos+1 : end]
	if len(digits) == 0 {
		return Value{}, pos, ErrInvalidFormat
	}
	neg := digits[0] == '-'
	d := digits
	if neg {
		d = digits[1:]
	}
	if len(d) == 0 || (len(d) > 1 && d[0] == '0') || (neg && d[0] == '0') {
		return Value{}, pos, ErrInvalidFormat
	}
	var n int64
	for _, c := range d {
		if c < '0' || c > '9' {
			return Value{}, pos, ErrInvalidFormat
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return Value{Kind: KindInt, Int: n}, end + 1, nil
}

func decodeString(b []byte, pos int) (Value, int, error) {
	colon := indexByte(b, pos, ':')
	if colon < 0 {
		return Value{}, pos, ErrInvalidFormat
	}
	lenDigits := b[pos:colon]
	if len(lenDigits) == 0 || (len(lenDigits) > 1 && lenDigits[0] == '0') {
		return Value{}, pos, ErrInvalidFormat
	}
	var length int
	for _, c := range lenDigits {
		if c < '0' || c > '9' {
			return Value{}, pos, ErrInvalidFormat
		}
		length = length*10 + int(c-'0')
	}
	start := colon + 1
	end := start + length
	if end < start || end > len(b) {
		return Value{}, pos, ErrInvalidFormat
	}
	return Value{Kind: KindString, Str: b[start:end]}, end, nil
}

func decodeList(b []byte, pos int) (Value, int, error) {
	pos++ // skip 'l'
	var list []Value
	for {
		if pos >= len(b) {
			return Value{}, pos, ErrInvalidFormat
		}
		if b[pos] == 'e' {
			return Value{Kind: KindList, List: list}, pos + 1, nil
		}
		v, next, err := decodeValue(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		list = append(list, v)
		pos = next
	}
}

func decodeDict(b []byte, pos int) (Value, int, error) {
	pos++ // skip 'd'
	var dict []DictEntry
	var lastKey []byte
	for {
		if pos >= len(b) {
			return Value{}, pos, ErrInvalidFormat
		}
		if b[pos] == 'e' {
			return Value{Kind: KindDict, Dict: dict}, pos + 1, nil
		}
		k, next, err := decodeString(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		if lastKey != nil && compareBytes(k.Str, lastKey) <= 0 {
			return Value{}, pos, fmt.Errorf("%w: dict keys out of order", ErrInvalidFormat)
		}
		lastKey = k.Str
		pos = next
		v, next2, err := decodeValue(b, pos)
		if err != nil {
			return Value{}, pos, err
		}
		dict = append(dict, DictEntry{Key: k.Str, Value: v})
		pos = next2
	}
}

func indexByte(b []byte, from int, c byte) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// Encode appends the bencode representation of v to dst, enforcing
// strict lexicographic key ordering on dict entries regardless of the
// order they were built in.
func Encode(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindInt:
		dst = append(dst, 'i')
		dst = appendInt(dst, v.Int)
		dst = append(dst, 'e')
	case KindString:
		dst = appendInt(dst, int64(len(v.Str)))
		dst = append(dst, ':')
		dst = append(dst, v.Str...)
	case KindList:
		dst = append(dst, 'l')
		for _, e := range v.List {
			dst = Encode(dst, e)
		}
		dst = append(dst, 'e')
	case KindDict:
		entries := make([]DictEntry, len(v.Dict))
		copy(entries, v.Dict)
		sort.Slice(entries, func(i, j int) bool {
			return compareBytes(entries[i].Key, entries[j].Key) < 0
		})
		dst = append(dst, 'd')
		for _, e := range entries {
			dst = Encode(dst, Value{Kind: KindString, Str: e.Key})
			dst = Encode(dst, e.Value)
		}
		dst = append(dst, 'e')
	}
	return dst
}

func appendInt(dst []byte, n int64) []byte {
	if n == 0 {
		return append(dst, '0')
	}
	neg := n < 0
	if neg {
		dst = append(dst, '-')
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return append(dst, buf[i:]...)
}

// String returns a new string Value.
func String(s []byte) Value { return Value{Kind: KindString, Str: s} }

// Int returns a new int Value.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// List returns a new list Value.
func List(vs ...Value) Value { return Value{Kind: KindList, List: vs} }

// Dict returns a new dict Value from already-ordered or unordered
// entries; Encode always re-sorts by key.
func Dict(entries ...DictEntry) Value { return Value{Kind: KindDict, Dict: entries} }
