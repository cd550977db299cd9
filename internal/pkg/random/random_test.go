package random_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tget/internal/pkg/random"
)

func TestBytes(t *testing.T) {
	a := random.Bytes(16)
	b := random.Bytes(16)

	require.Len(t, a, 16)
	require.NotEqual(t, a, b)
	require.Empty(t, random.Bytes(0))
}
