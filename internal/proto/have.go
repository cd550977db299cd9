package proto

import (
	"encoding/binary"
	"io"
)

func SendHave(conn io.Writer, pieceIndex uint32) error {
	return SendIndexOnly(conn, Have, pieceIndex)
}

// ParseHave returns the piece index carried by a have payload.
func ParseHave(payload []byte) (uint32, error) {
	if len(payload) != sizeUint32 {
		return 0, ErrInvalidPayload
	}

	return binary.BigEndian.Uint32(payload), nil
}
