package proto

import (
	"errors"
	"fmt"
	"io"

	"github.com/negrel/assert"
)

const HandshakePstrV1 = "BitTorrent protocol"
const HandshakePstrLen = byte(len(HandshakePstrV1))

// HandshakeLength is the size of a v1 handshake on the wire.
const HandshakeLength = 1 + len(HandshakePstrV1) + 8 + 20 + 20

var HandshakeReserved = [8]byte{}

// SendHandshake = <pStrlen><pStr><reserved><info_hash><peer_id>
// - pStrlen = length of pStr (1 byte)
// - pStr = string identifier of the protocol: "BitTorrent protocol" (19 bytes)
// - reserved = 8 reserved bytes indicating extensions to the protocol (8 bytes)
// - info_hash = hash of the value of the 'info' key of the torrent file (20 bytes)
// - peer_id = unique identifier of the Peer (20 bytes)
//
// Total length = payload length = 49 + len(pstr) = 68 bytes (for BitTorrent v1)
func SendHandshake(conn io.Writer, infoHash, peerID [20]byte) error {
	var b = make([]byte, 0, HandshakeLength)

	b = append(b, HandshakePstrLen)
	b = append(b, HandshakePstrV1...)
	b = append(b, HandshakeReserved[:]...)
	b = append(b, infoHash[:]...)
	b = append(b, peerID[:]...)

	assert.Len(b, HandshakeLength)

	_, err := conn.Write(b)
	return err
}

type Handshake struct {
	Reserved [8]byte
	InfoHash [20]byte
	PeerID   [20]byte
}

func (h Handshake) GoString() string {
	return fmt.Sprintf("Handshake{InfoHash='%x', PeerID='%s'}", h.InfoHash, h.PeerID)
}

var ErrHandshakeMismatch = errors.New("handshake string mismatch")

// ReadHandshake reads exactly HandshakeLength bytes. A short read is an error.
func ReadHandshake(conn io.Reader) (Handshake, error) {
	var b [HandshakeLength]byte

	if _, err := io.ReadFull(conn, b[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Handshake{}, err
	}

	if b[0] != HandshakePstrLen || string(b[1:20]) != HandshakePstrV1 {
		return Handshake{}, ErrHandshakeMismatch
	}

	var h Handshake
	copy(h.Reserved[:], b[20:28])
	copy(h.InfoHash[:], b[28:48])
	copy(h.PeerID[:], b[48:68])

	return h, nil
}
