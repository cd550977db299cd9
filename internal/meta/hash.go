package meta

import (
	"encoding/hex"
)

// Hash is a 20-byte SHA-1 digest, used both for the info-hash and for piece hashes.
type Hash [20]byte

func (h Hash) Bytes() []byte { return h[:] }

// AsString returns the raw digest bytes as a string, as trackers expect them in queries.
func (h Hash) AsString() string {
	return string(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}
