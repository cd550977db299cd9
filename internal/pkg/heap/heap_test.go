package heap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tget/internal/pkg/heap"
)

type Int int

func (i Int) Less(o Int) bool {
	return i < o
}

func drain(h *heap.Heap[Int]) []Int {
	var out []Int
	for {
		v, ok := h.Pop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func TestHeap(t *testing.T) {
	t.Parallel()

	h := heap.New[Int]()
	for _, v := range []Int{5, 2, 8, 1, 9, 2, 7} {
		h.Push(v)
	}

	top, ok := h.Peek()
	require.True(t, ok)
	require.EqualValues(t, 1, top)
	require.Equal(t, 7, h.Len())

	require.Equal(t, []Int{1, 2, 2, 5, 7, 8, 9}, drain(h))

	_, ok = h.Pop()
	require.False(t, ok)
	_, ok = h.Peek()
	require.False(t, ok)
}

func TestFromSlice(t *testing.T) {
	t.Parallel()

	h := heap.FromSlice([]Int{9, 4, 6, 1, 3})
	h.Push(2)

	require.Equal(t, []Int{1, 2, 3, 4, 6, 9}, drain(h))
}
