package pool_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"tget/internal/pkg/pool"
)

func TestPool(t *testing.T) {
	t.Parallel()

	var created int
	p := pool.New(func() *bytes.Buffer {
		created++
		return new(bytes.Buffer)
	})

	b := p.Get()
	require.NotNil(t, b)
	require.Equal(t, 1, created)
	p.Put(b)

	p.With(func(b *bytes.Buffer) {
		require.NotNil(t, b)
	})
}

func TestPoolRequiresNew(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		pool.New[*bytes.Buffer](nil)
	})
}
