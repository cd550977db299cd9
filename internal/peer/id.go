package peer

import (
	"net/url"

	"github.com/dchest/uniuri"

	"tget/internal/pkg/global"
)

type ID [20]byte

func (i ID) AsString() string {
	return string(i[:])
}

func (i ID) String() string {
	return url.QueryEscape(i.AsString())
}

var emptyID ID

func (i ID) Zero() bool {
	return i == emptyID
}

var peerIDChars = []byte("0123456789abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~")

// NewID returns `global.PeerIDPrefix` followed by 12 random printable characters.
func NewID() (peerID ID) {
	copy(peerID[:], global.PeerIDPrefix)
	copy(peerID[8:], uniuri.NewLenCharsBytes(12, peerIDChars))
	return
}
