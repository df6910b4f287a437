package bencode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("i42e"),
		[]byte("i-7e"),
		[]byte("i0e"),
		[]byte("4:spam"),
		[]byte("0:"),
		[]byte("l4:spam4:eggse"),
		[]byte("d3:bar4:spam3:fooi42ee"),
		[]byte("d4:listl1:a1:b1:cee"),
	}
	for _, c := range cases {
		v, err := DecodeAll(c)
		require.NoError(t, err)
		got := Encode(nil, v)
		require.Equal(t, string(c), string(got))
	}
}

func TestDictKeyOrderEnforced(t *testing.T) {
	_, err := DecodeAll([]byte("d3:foo3:bar3:bazi1ee"))
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestEncodeSortsKeys(t *testing.T) {
	v := Dict(
		DictEntry{Key: []byte("z"), Value: Int(1)},
		DictEntry{Key: []byte("a"), Value: Int(2)},
	)
	require.Equal(t, "d1:ai2e1:zi1ee", string(Encode(nil, v)))
}

func TestInvalidInputsRejected(t *testing.T) {
	invalid := [][]byte{
		[]byte("i01e"),
		[]byte("i-0e"),
		[]byte("5:ab"),
		[]byte("di1ei2ee"),
		[]byte("x"),
		nil,
	}
	for _, c := range invalid {
		_, _, err := Decode(c)
		require.ErrorIs(t, err, ErrInvalidFormat)
	}
}
