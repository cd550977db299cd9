package bm

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// New returns an empty bitmap holding bits [0, size).
func New(size uint32) *Bitmap {
	return &Bitmap{
		bm:   roaring.New(),
		size: size,
	}
}

// FromBitfield decodes a BitTorrent bitfield. The high bit of the first byte is index 0.
// Only the first min(size, len(b)*8) bits are read: bits past size are ignored and a short
// bitfield leaves the remaining pieces unset.
func FromBitfield(b []byte, size uint32) *Bitmap {
	n := min(uint64(size), uint64(len(b))*8)

	r := roaring.New()
	for i := uint32(0); uint64(i) < n; i++ {
		if b[i/8]&(0x80>>(i%8)) != 0 {
			r.Add(i)
		}
	}

	return &Bitmap{bm: r, size: size}
}

func BitfieldLen(size uint32) int {
	return int((size + 7) / 8)
}

// Bitmap is thread-safe bitmap wrapper
type Bitmap struct {
	bm   *roaring.Bitmap
	m    sync.RWMutex
	size uint32
}

// Len returns the number of bits the bitmap was created for.
func (b *Bitmap) Len() uint32 {
	return b.size
}

func (b *Bitmap) Count() uint32 {
	b.m.RLock()
	v := uint32(b.bm.GetCardinality())
	b.m.RUnlock()
	return v
}

// Set marks bit i. Out of range indexes are ignored.
func (b *Bitmap) Set(i uint32) {
	if i >= b.size {
		return
	}

	b.m.Lock()
	b.bm.Add(i)
	b.m.Unlock()
}

// CheckedSet marks bit i and reports whether it was previously unset.
func (b *Bitmap) CheckedSet(i uint32) bool {
	if i >= b.size {
		return false
	}

	b.m.Lock()
	v := b.bm.CheckedAdd(i)
	b.m.Unlock()
	return v
}

func (b *Bitmap) Unset(i uint32) {
	b.m.Lock()
	b.bm.Remove(i)
	b.m.Unlock()
}

func (b *Bitmap) Get(i uint32) bool {
	b.m.RLock()
	v := b.bm.Contains(i)
	b.m.RUnlock()
	return v
}

// Fill sets every bit.
func (b *Bitmap) Fill() {
	b.m.Lock()
	b.bm.AddRange(0, uint64(b.size))
	b.m.Unlock()
}

func (b *Bitmap) Clear() {
	b.m.Lock()
	b.bm.Clear()
	b.m.Unlock()
}

// Merge sets every bit that is set in other.
func (b *Bitmap) Merge(other *Bitmap) {
	other.m.RLock()
	c := other.bm.Clone()
	other.m.RUnlock()

	b.m.Lock()
	b.bm.Or(c)
	b.m.Unlock()
}

// Missing returns unset indexes in ascending order.
func (b *Bitmap) Missing() []uint32 {
	b.m.RLock()
	defer b.m.RUnlock()

	var s = make([]uint32, 0, uint64(b.size)-b.bm.GetCardinality())
	for i := uint32(0); i < b.size; i++ {
		if !b.bm.Contains(i) {
			s = append(s, i)
		}
	}

	return s
}

// Bitfield encodes the bitmap in wire order.
func (b *Bitmap) Bitfield() []byte {
	var buf = make([]byte, BitfieldLen(b.size))

	b.m.RLock()
	it := b.bm.Iterator()
	for it.HasNext() {
		i := it.Next()
		buf[i/8] |= 0x80 >> (i % 8)
	}
	b.m.RUnlock()

	return buf
}
