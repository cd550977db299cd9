// Package heap is a generic binary min-heap.
package heap

type Lesser[T any] interface {
	Less(b T) bool
}

// Heap keeps its smallest element, by T.Less, at the top.
// It's not safe for concurrent use.
type Heap[T Lesser[T]] struct {
	data []T
}

func New[T Lesser[T]]() *Heap[T] {
	return &Heap[T]{}
}

// FromSlice heapifies data in place and takes ownership of it.
func FromSlice[T Lesser[T]](data []T) *Heap[T] {
	h := &Heap[T]{data: data}
	for i := len(data)/2 - 1; i >= 0; i-- {
		h.down(i)
	}

	return h
}

func (h *Heap[T]) Push(x T) {
	h.data = append(h.data, x)
	h.up(len(h.data) - 1)
}

// Pop removes the smallest element. ok is false on an empty heap.
func (h *Heap[T]) Pop() (x T, ok bool) {
	n := len(h.data)
	if n == 0 {
		return x, false
	}

	x = h.data[0]
	h.data[0] = h.data[n-1]

	var zero T
	h.data[n-1] = zero
	h.data = h.data[:n-1]

	h.down(0)

	return x, true
}

func (h *Heap[T]) Peek() (x T, ok bool) {
	if len(h.data) == 0 {
		return x, false
	}

	return h.data[0], true
}

func (h *Heap[T]) Len() int {
	return len(h.data)
}

func (h *Heap[T]) less(i, j int) bool {
	return h.data[i].Less(h.data[j])
}

func (h *Heap[T]) swap(i, j int) {
	h.data[i], h.data[j] = h.data[j], h.data[i]
}

func (h *Heap[T]) down(i int) {
	n := len(h.data)
	for {
		smallest := i
		if l := 2*i + 1; l < n && h.less(l, smallest) {
			smallest = l
		}
		if r := 2*i + 2; r < n && h.less(r, smallest) {
			smallest = r
		}

		if smallest == i {
			return
		}

		h.swap(i, smallest)
		i = smallest
	}
}

func (h *Heap[T]) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			return
		}

		h.swap(i, parent)
		i = parent
	}
}
