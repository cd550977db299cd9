package tracker

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type udpServer struct {
	conn     net.PacketConn
	announce func(req []byte) []byte
	// dropConnects ignores this many connect requests before answering.
	dropConnects int
	connects     atomic.Int32
	silent       bool
}

func startUDPServer(t *testing.T, s *udpServer) string {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	s.conn = conn

	go s.serve()

	return conn.LocalAddr().String()
}

func (s *udpServer) serve() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			return
		}

		if s.silent {
			continue
		}

		req := buf[:n]
		var res []byte

		switch {
		case n == connectRequestLength && binary.BigEndian.Uint64(req) == udpProtocolID:
			if int(s.connects.Add(1)) <= s.dropConnects {
				continue
			}
			res = make([]byte, 16)
			binary.BigEndian.PutUint32(res[0:], actionConnect)
			copy(res[4:8], req[12:16])
			binary.BigEndian.PutUint64(res[8:], 0xdeadbeef)
		case n == announceRequestLength && binary.BigEndian.Uint64(req) == 0xdeadbeef:
			res = s.announce(req)
		default:
			continue
		}

		_, _ = s.conn.WriteTo(res, addr)
	}
}

func announceReply(req []byte, peers ...byte) []byte {
	res := make([]byte, announceHeaderLength, announceHeaderLength+len(peers))
	binary.BigEndian.PutUint32(res[0:], actionAnnounce)
	copy(res[4:8], req[12:16])
	binary.BigEndian.PutUint32(res[8:], 1800)
	binary.BigEndian.PutUint32(res[12:], 5)
	binary.BigEndian.PutUint32(res[16:], 7)
	return append(res, peers...)
}

func testAnnounceRequest() AnnounceRequest {
	r := AnnounceRequest{
		Port:       51413,
		Left:       4096,
		Downloaded: 10,
		Uploaded:   20,
		NumWant:    50,
		Event:      EventStarted,
	}
	copy(r.InfoHash[:], "iiiiiiiiiiiiiiiiiiii")
	copy(r.PeerID[:], "pppppppppppppppppppp")
	return r
}

func TestUDPAnnounce(t *testing.T) {
	t.Parallel()

	received := make(chan []byte, 1)

	host := startUDPServer(t, &udpServer{announce: func(req []byte) []byte {
		received <- append([]byte(nil), req...)
		return announceReply(req, 10, 0, 0, 1, 0x1a, 0xe1, 10, 0, 0, 2, 0x1a, 0xe2, 9)
	}})

	tr, err := New("udp://"+host+"/announce", nil)
	require.NoError(t, err)

	res, err := tr.Announce(context.Background(), testAnnounceRequest())
	require.NoError(t, err)

	require.Equal(t, 1800*time.Second, res.Interval)
	require.Equal(t, 5, res.Leechers)
	require.Equal(t, 7, res.Seeders)
	require.Equal(t, []netip.AddrPort{
		netip.MustParseAddrPort("10.0.0.1:6881"),
		netip.MustParseAddrPort("10.0.0.2:6882"),
	}, res.Peers)

	req := <-received
	require.Equal(t, actionAnnounce, binary.BigEndian.Uint32(req[8:]))
	require.Equal(t, "iiiiiiiiiiiiiiiiiiii", string(req[16:36]))
	require.Equal(t, "pppppppppppppppppppp", string(req[36:56]))
	require.EqualValues(t, 10, binary.BigEndian.Uint64(req[56:]))
	require.EqualValues(t, 4096, binary.BigEndian.Uint64(req[64:]))
	require.EqualValues(t, 20, binary.BigEndian.Uint64(req[72:]))
	require.EqualValues(t, 2, binary.BigEndian.Uint32(req[80:]))
	require.EqualValues(t, 50, binary.BigEndian.Uint32(req[92:]))
	require.EqualValues(t, 51413, binary.BigEndian.Uint16(req[96:]))
}

func TestUDPAnnounceError(t *testing.T) {
	t.Parallel()

	host := startUDPServer(t, &udpServer{announce: func(req []byte) []byte {
		res := make([]byte, 8)
		binary.BigEndian.PutUint32(res[0:], actionError)
		copy(res[4:8], req[12:16])
		return append(res, "unknown torrent"...)
	}})

	tr, err := New("udp://"+host, nil)
	require.NoError(t, err)

	_, err = tr.Announce(context.Background(), testAnnounceRequest())

	var fe *FailureError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, "unknown torrent", fe.Reason)
}

func TestUDPAnnounceTransactionMismatch(t *testing.T) {
	t.Parallel()

	host := startUDPServer(t, &udpServer{announce: func(req []byte) []byte {
		res := announceReply(req)
		res[4] ^= 0xff
		return res
	}})

	tr, err := New("udp://"+host, nil)
	require.NoError(t, err)

	_, err = tr.Announce(context.Background(), testAnnounceRequest())
	require.ErrorIs(t, err, errTransactionMismatch)
}

func TestUDPAnnounceTimeout(t *testing.T) {
	t.Parallel()

	host := startUDPServer(t, &udpServer{silent: true})

	tr := &udpTracker{url: "udp://" + host, host: host, timeout: 200 * time.Millisecond}

	start := time.Now()
	_, err := tr.Announce(context.Background(), testAnnounceRequest())
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestUDPAnnounceRetransmits(t *testing.T) {
	t.Parallel()

	s := &udpServer{dropConnects: 2, announce: func(req []byte) []byte {
		return announceReply(req, 10, 0, 0, 1, 0x1a, 0xe1)
	}}
	host := startUDPServer(t, s)

	tr := &udpTracker{url: "udp://" + host, host: host, timeout: 5 * time.Second, retry: 100 * time.Millisecond}

	res, err := tr.Announce(context.Background(), testAnnounceRequest())
	require.NoError(t, err)
	require.Equal(t, []netip.AddrPort{netip.MustParseAddrPort("10.0.0.1:6881")}, res.Peers)
	require.EqualValues(t, 3, s.connects.Load())
}

func TestUDPAnnounceCanceled(t *testing.T) {
	t.Parallel()

	host := startUDPServer(t, &udpServer{silent: true})

	tr, err := New("udp://"+host, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err = tr.Announce(ctx, testAnnounceRequest())
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestUDPEvent(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 0, udpEvent(""))
	require.EqualValues(t, 1, udpEvent(EventCompleted))
	require.EqualValues(t, 2, udpEvent(EventStarted))
	require.EqualValues(t, 3, udpEvent(EventStopped))
}
