package proto_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tget/internal/pkg/bm"
	"tget/internal/proto"
)

func TestHandshake(t *testing.T) {
	var infoHash, peerID [20]byte
	copy(infoHash[:], "aaaaaaaaaaaaaaaaaaaa")
	copy(peerID[:], "-TG0000-bbbbbbbbbbbb")

	var b bytes.Buffer
	require.NoError(t, proto.SendHandshake(&b, infoHash, peerID))
	require.Equal(t, proto.HandshakeLength, b.Len())
	require.Equal(t, 68, b.Len())
	require.Equal(t, "\x13BitTorrent protocol\x00\x00\x00\x00\x00\x00\x00\x00", b.String()[:28])

	h, err := proto.ReadHandshake(&b)
	require.NoError(t, err)
	require.Equal(t, infoHash, h.InfoHash)
	require.Equal(t, peerID, h.PeerID)
}

func TestReadHandshakeShort(t *testing.T) {
	_, err := proto.ReadHandshake(strings.NewReader("\x13BitTorrent protocol"))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = proto.ReadHandshake(strings.NewReader(""))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadHandshakeWrongProtocol(t *testing.T) {
	_, err := proto.ReadHandshake(strings.NewReader("\x13BitTorrent protoco!" + strings.Repeat("\x00", 48)))
	require.ErrorIs(t, err, proto.ErrHandshakeMismatch)
}

func TestReadFrame(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, proto.SendKeepAlive(&b))
	require.NoError(t, proto.SendUnchoke(&b))
	require.NoError(t, proto.SendHave(&b, 7))
	require.NoError(t, proto.SendRequest(&b, proto.ChunkRequest{PieceIndex: 1, Begin: 16384, Length: 16384}))

	f, err := proto.ReadFrame(&b)
	require.NoError(t, err)
	require.True(t, f.KeepAlive)

	f, err = proto.ReadFrame(&b)
	require.NoError(t, err)
	require.Equal(t, proto.Unchoke, f.ID)
	require.Empty(t, f.Payload)

	f, err = proto.ReadFrame(&b)
	require.NoError(t, err)
	require.Equal(t, proto.Have, f.ID)
	index, err := proto.ParseHave(f.Payload)
	require.NoError(t, err)
	require.EqualValues(t, 7, index)

	f, err = proto.ReadFrame(&b)
	require.NoError(t, err)
	require.Equal(t, proto.Request, f.ID)
	r, err := proto.ParseRequest(f.Payload)
	require.NoError(t, err)
	require.Equal(t, proto.ChunkRequest{PieceIndex: 1, Begin: 16384, Length: 16384}, r)

	_, err = proto.ReadFrame(&b)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTooLarge(t *testing.T) {
	b := binary.BigEndian.AppendUint32(nil, proto.MaxFrameLength+1)

	_, err := proto.ReadFrame(bytes.NewReader(b))
	require.ErrorIs(t, err, proto.ErrFrameTooLarge)
}

func TestReadFrameTruncated(t *testing.T) {
	b := binary.BigEndian.AppendUint32(nil, 10)
	b = append(b, byte(proto.Piece), 0, 0)

	_, err := proto.ReadFrame(bytes.NewReader(b))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = proto.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 5}))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSendBitfield(t *testing.T) {
	m := bm.New(4)
	m.Set(0)
	m.Set(2)
	m.Set(3)

	var b bytes.Buffer
	require.NoError(t, proto.SendBitfield(&b, m))
	require.Equal(t, []byte{0, 0, 0, 2, 5, 0b10110000}, b.Bytes())
}

func TestParseInvalidPayload(t *testing.T) {
	_, err := proto.ParseHave([]byte{1, 2})
	require.ErrorIs(t, err, proto.ErrInvalidPayload)

	_, err = proto.ParseRequest(make([]byte, 11))
	require.ErrorIs(t, err, proto.ErrInvalidPayload)
}

func TestMessageString(t *testing.T) {
	require.Equal(t, "Piece", proto.Piece.String())
	require.Equal(t, "Message(99)", proto.Message(99).String())
	require.Equal(t, "AllowedFast", proto.AllowedFast.String())
	require.Equal(t, "Extended", proto.Extended.String())
	require.Equal(t, "Message(12)", proto.Message(12).String())
}

func TestStatusMessages(t *testing.T) {
	var b bytes.Buffer

	require.NoError(t, proto.SendChoke(&b))
	require.NoError(t, proto.SendUnchoke(&b))
	require.NoError(t, proto.SendInterested(&b))
	require.NoError(t, proto.SendNotInterested(&b))
	require.NoError(t, proto.SendKeepAlive(&b))

	require.Equal(t, []byte{
		0, 0, 0, 1, 0,
		0, 0, 0, 1, 1,
		0, 0, 0, 1, 2,
		0, 0, 0, 1, 3,
		0, 0, 0, 0,
	}, b.Bytes())

	for _, id := range []proto.Message{proto.Choke, proto.Unchoke, proto.Interested, proto.NotInterested} {
		f, err := proto.ReadFrame(&b)
		require.NoError(t, err)
		require.Equal(t, id, f.ID)
		require.Empty(t, f.Payload)
	}

	f, err := proto.ReadFrame(&b)
	require.NoError(t, err)
	require.True(t, f.KeepAlive)
}
