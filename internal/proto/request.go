package proto

import (
	"encoding/binary"
	"io"

	"github.com/negrel/assert"
)

// ChunkRequest is the payload of request and cancel messages.
type ChunkRequest struct {
	PieceIndex uint32
	Begin      uint32
	Length     uint32
}

func SendRequest(conn io.Writer, request ChunkRequest) error {
	return sendChunkRequest(conn, Request, request)
}

func SendCancel(conn io.Writer, request ChunkRequest) error {
	return sendChunkRequest(conn, Cancel, request)
}

func sendChunkRequest(conn io.Writer, id Message, request ChunkRequest) error {
	var b = make([]byte, 0, 4+1+4+4+4)
	b = binary.BigEndian.AppendUint32(b, 4+4+4+1)

	b = append(b, byte(id))

	b = binary.BigEndian.AppendUint32(b, request.PieceIndex)
	b = binary.BigEndian.AppendUint32(b, request.Begin)
	b = binary.BigEndian.AppendUint32(b, request.Length)

	assert.Len(b, 4+1+4+4+4)

	_, err := conn.Write(b)
	return err
}

// ParseRequest decodes the payload of a request or cancel message.
func ParseRequest(payload []byte) (ChunkRequest, error) {
	if len(payload) != sizeUint32*3 {
		return ChunkRequest{}, ErrInvalidPayload
	}

	return ChunkRequest{
		PieceIndex: binary.BigEndian.Uint32(payload),
		Begin:      binary.BigEndian.Uint32(payload[4:]),
		Length:     binary.BigEndian.Uint32(payload[8:]),
	}, nil
}
