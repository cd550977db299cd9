//go:build !release

package as_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"tget/internal/pkg/as"
)

func TestUint32(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint32(5), as.Uint32(int8(5)))
	require.Equal(t, uint32(5), as.Uint32(int64(5)))
	require.Equal(t, uint32(5), as.Uint32(uint64(5)))
	require.Equal(t, uint32(math.MaxUint32), as.Uint32(int64(math.MaxUint32)))

	require.Panics(t, func() { as.Uint32(int64(math.MaxUint32 + 1)) })
	require.Panics(t, func() { as.Uint32(-1) })
}

func TestUint16(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint16(6881), as.Uint16(6881))
	require.Panics(t, func() { as.Uint16(70000) })
}

func TestInt32(t *testing.T) {
	t.Parallel()

	require.Equal(t, int32(-1), as.Int32(int64(-1)))
	require.Panics(t, func() { as.Int32(uint32(math.MaxUint32)) })
	require.Panics(t, func() { as.Int32(int64(math.MinInt32 - 1)) })
}
