package bitfield

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetClearTest(t *testing.T) {
	b := New(10)
	require.False(t, b.Test(3))
	b.Set(3)
	require.True(t, b.Test(3))
	b.Clear(3)
	require.False(t, b.Test(3))
}

func TestAllAndNone(t *testing.T) {
	all := All(12)
	require.True(t, all.Complete())
	require.Equal(t, uint32(12), all.Count())

	none := New(12)
	require.Equal(t, uint32(0), none.Count())
	none.ClearAll()
	require.Equal(t, uint32(0), none.Count())
}

func TestTrailingBitsClearedOnOddLength(t *testing.T) {
	b := All(10) // 2 bytes, 6 trailing bits in the second byte must stay clear
	require.Equal(t, uint32(10), b.Count())
	require.Equal(t, byte(0xc0), b.Bytes()[1])
}

func TestFromBytesClearsTrailing(t *testing.T) {
	raw := []byte{0xff, 0xff}
	b := FromBytes(raw, 10)
	require.Equal(t, byte(0xc0), b.Bytes()[1])
}
