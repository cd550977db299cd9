package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/docker/go-units"
)

//go:generate stringer -type=Message
type Message byte

const (
	Choke         Message = 0
	Unchoke       Message = 1
	Interested    Message = 2
	NotInterested Message = 3
	Have          Message = 4
	Bitfield      Message = 5
	Request       Message = 6
	Piece         Message = 7
	Cancel        Message = 8

	// BEP 5, for DHT

	Port Message = 9

	// BEP 6 - Fast extension
	//https://www.bittorrent.org/beps/bep_0006.html

	Suggest     Message = 0x0d // payload piece index
	HaveAll     Message = 0x0e
	HaveNone    Message = 0x0f
	Reject      Message = 0x10
	AllowedFast Message = 0x11 // payload piece index

	// BEP 10
	//https://www.bittorrent.org/beps/bep_0010.html

	Extended Message = 20
)

// MaxFrameLength is the largest length prefix accepted from a peer:
// a piece message carrying a 1 MiB block plus its id, index and offset.
const MaxFrameLength = units.MiB + sizeByte + sizeUint32*2

var ErrFrameTooLarge = errors.New("frame length exceeds limit")

// ErrInvalidPayload is returned when a payload doesn't have the size its message id requires.
var ErrInvalidPayload = errors.New("invalid message payload")

// Frame is one length-prefixed message. KeepAlive frames have no ID and no payload.
type Frame struct {
	Payload   []byte
	ID        Message
	KeepAlive bool
}

// ReadFrame reads one `<length><id><payload>` frame.
// A stream closed in the middle of a frame results in io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) (Frame, error) {
	var l [sizeUint32]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return Frame{}, err
	}

	size := binary.BigEndian.Uint32(l[:])
	if size == 0 {
		return Frame{KeepAlive: true}, nil
	}

	if size > MaxFrameLength {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}

	return Frame{ID: Message(buf[0]), Payload: buf[1:]}, nil
}

func SendNoPayload(conn io.Writer, e Message) error {
	var b = make([]byte, 0, 5)
	b = binary.BigEndian.AppendUint32(b, 1)
	b = append(b, byte(e))
	_, err := conn.Write(b)
	return err
}

// SendIndexOnly event with index only payload
func SendIndexOnly(conn io.Writer, e Message, index uint32) error {
	var b = make([]byte, 0, 9)
	b = binary.BigEndian.AppendUint32(b, sizeByte+sizeUint32)
	b = append(b, byte(e))
	b = binary.BigEndian.AppendUint32(b, index)
	_, err := conn.Write(b)
	return err
}

const sizeByte = 1
const sizeUint32 = 4
