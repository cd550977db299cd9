package bm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tget/internal/pkg/bm"
)

func TestBitmap(t *testing.T) {
	b := bm.New(10)
	b.Fill()
	require.True(t, b.Get(9))
	require.False(t, b.Get(10))
	require.EqualValues(t, 10, b.Count())

	b.Clear()
	require.EqualValues(t, 0, b.Count())

	b.Set(20)
	require.False(t, b.Get(20))
}

func TestCheckedSet(t *testing.T) {
	b := bm.New(4)

	require.True(t, b.CheckedSet(1))
	require.False(t, b.CheckedSet(1))
	require.False(t, b.CheckedSet(4))
	require.Equal(t, []uint32{0, 2, 3}, b.Missing())
}

func TestFromBitfield(t *testing.T) {
	b := bm.FromBitfield([]byte{0b10110000}, 4)

	var got []bool
	for i := uint32(0); i < 4; i++ {
		got = append(got, b.Get(i))
	}

	require.Equal(t, []bool{true, false, true, true}, got)
}

func TestFromBitfieldIgnoresSpareBits(t *testing.T) {
	b := bm.FromBitfield([]byte{0xff, 0xff}, 10)
	require.EqualValues(t, 10, b.Count())
	require.Equal(t, []byte{0xff, 0xc0}, b.Bitfield())
}

func TestFromBitfieldLength(t *testing.T) {
	long := bm.FromBitfield([]byte{0b10110000, 0xff, 0xff}, 4)
	require.EqualValues(t, 3, long.Count())
	require.False(t, long.Get(1))
	require.False(t, long.Get(4))
	require.EqualValues(t, 4, long.Len())

	short := bm.FromBitfield([]byte{0xff}, 10)
	require.EqualValues(t, 8, short.Count())
	require.Equal(t, []uint32{8, 9}, short.Missing())

	empty := bm.FromBitfield(nil, 10)
	require.EqualValues(t, 0, empty.Count())
}

func TestMerge(t *testing.T) {
	b := bm.New(8)
	b.Set(1)

	b.Merge(bm.FromBitfield([]byte{0b10000001}, 8))
	require.Equal(t, []uint32{2, 3, 4, 5, 6}, b.Missing())
}

func TestBitfieldRoundTrip(t *testing.T) {
	b := bm.New(17)
	b.Set(0)
	b.Set(7)
	b.Set(8)
	b.Set(16)

	raw := b.Bitfield()
	require.Equal(t, []byte{0b10000001, 0b10000000, 0b10000000}, raw)

	c := bm.FromBitfield(raw, 17)
	require.Equal(t, raw, c.Bitfield())

	d := bm.New(17)
	d.Merge(c)
	require.EqualValues(t, 4, d.Count())
}
