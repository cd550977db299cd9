package proto

import (
	"encoding/binary"
	"io"

	"github.com/valyala/bytebufferpool"

	"tget/internal/pkg/as"
)

// ChunkResponse is the payload of a piece message.
type ChunkResponse struct {
	Data       []byte
	PieceIndex uint32
	Begin      uint32
}

func SendPiece(conn io.Writer, r ChunkResponse) error {
	var buf = bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = binary.BigEndian.AppendUint32(buf.B, as.Uint32(len(r.Data)+sizeByte+sizeUint32*2))
	buf.B = append(buf.B, byte(Piece))
	buf.B = binary.BigEndian.AppendUint32(buf.B, r.PieceIndex)
	buf.B = binary.BigEndian.AppendUint32(buf.B, r.Begin)
	buf.B = append(buf.B, r.Data...)

	_, err := conn.Write(buf.B)
	return err
}

// ParsePiece decodes a piece payload. Data aliases payload.
func ParsePiece(payload []byte) (ChunkResponse, error) {
	if len(payload) < sizeUint32*2 {
		return ChunkResponse{}, ErrInvalidPayload
	}

	return ChunkResponse{
		PieceIndex: binary.BigEndian.Uint32(payload),
		Begin:      binary.BigEndian.Uint32(payload[4:]),
		Data:       payload[8:],
	}, nil
}
