package random

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"io"

	"tget/internal/pkg/pool"
)

var p = pool.New(func() *bufio.Reader {
	return bufio.NewReader(rand.Reader)
})

// Bytes returns n cryptographically secure random bytes.
// Will panic if it can't read from 'crypto/rand'.
func Bytes(n int) []byte {
	reader := p.Get()
	defer p.Put(reader)

	r := make([]byte, n)
	if _, err := io.ReadFull(reader, r); err != nil {
		panic("unexpected error happened when reading from bufio.NewReader(crypto/rand.Reader)")
	}

	return r
}

func Uint32() uint32 {
	return binary.BigEndian.Uint32(Bytes(4))
}
