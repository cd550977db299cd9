package proto

import (
	"encoding/binary"
	"io"

	"github.com/valyala/bytebufferpool"

	"tget/internal/pkg/as"
	"tget/internal/pkg/bm"
)

// SendBitfield writes bitmap as a bitfield message, high bit of the first byte is piece 0.
func SendBitfield(w io.Writer, bitmap *bm.Bitmap) error {
	return SendBitfieldBytes(w, bitmap.Bitfield())
}

// SendBitfieldBytes writes an already encoded bitfield.
func SendBitfieldBytes(w io.Writer, b []byte) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = binary.BigEndian.AppendUint32(buf.B, as.Uint32(sizeByte+len(b)))
	buf.B = append(buf.B, byte(Bitfield))
	buf.B = append(buf.B, b...)

	_, err := w.Write(buf.B)
	return err
}
