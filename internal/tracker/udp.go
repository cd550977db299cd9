package tracker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trim21/errgo"

	"tget/internal/pkg/as"
	"tget/internal/pkg/pool"
	"tget/internal/pkg/random"
)

// BEP 15
const udpProtocolID uint64 = 0x41727101980

const udpTimeout = 30 * time.Second

// a request is sent again when no answer came after udpRetry*2^n, as long as udpTimeout allows.
// BEP 15 starts at 15s, shorter here so a lost packet doesn't stall the start of a download.
const udpRetry = 5 * time.Second

const (
	actionConnect  uint32 = 0
	actionAnnounce uint32 = 1
	actionError    uint32 = 3
)

const connectRequestLength = 16
const announceRequestLength = 98
const announceHeaderLength = 20

// largest datagram a tracker may answer with.
const maxPacketSize = 64 * 1024

var packetPool = pool.New(func() *[maxPacketSize]byte {
	return new([maxPacketSize]byte)
})

var errTransactionMismatch = errors.New("udp tracker response has wrong transaction id")

type udpTracker struct {
	url     string
	host    string
	timeout time.Duration
	retry   time.Duration
}

func (t *udpTracker) URL() string {
	return t.url
}

func udpEvent(e string) uint32 {
	switch e {
	case EventCompleted:
		return 1
	case EventStarted:
		return 2
	case EventStopped:
		return 3
	}

	return 0
}

func (t *udpTracker) Announce(ctx context.Context, r AnnounceRequest) (AnnounceResponse, error) {
	log.Trace().Str("url", t.url).Msg("announce to udp tracker")

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", t.host)
	if err != nil {
		return AnnounceResponse{}, errgo.Wrap(err, "failed to connect to udp tracker")
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return AnnounceResponse{}, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	connID, err := t.connect(ctx, conn)
	if err != nil {
		return AnnounceResponse{}, err
	}

	addrLen := 4
	if a, ok := conn.RemoteAddr().(*net.UDPAddr); ok && a.IP.To4() == nil {
		addrLen = 16
	}

	return t.announce(ctx, conn, connID, r, addrLen)
}

func (t *udpTracker) connect(ctx context.Context, conn net.Conn) (uint64, error) {
	tid := random.Uint32()

	var req [connectRequestLength]byte
	binary.BigEndian.PutUint64(req[0:], udpProtocolID)
	binary.BigEndian.PutUint32(req[8:], actionConnect)
	binary.BigEndian.PutUint32(req[12:], tid)

	res, err := t.roundTrip(ctx, conn, req[:], actionConnect, tid, 16)
	if err != nil {
		return 0, errgo.Wrap(err, "udp tracker connect")
	}

	return binary.BigEndian.Uint64(res[8:]), nil
}

func (t *udpTracker) announce(ctx context.Context, conn net.Conn, connID uint64, r AnnounceRequest, addrLen int) (AnnounceResponse, error) {
	tid := random.Uint32()

	numWant := int32(-1)
	if r.NumWant > 0 {
		numWant = as.Int32(r.NumWant)
	}

	var req [announceRequestLength]byte
	binary.BigEndian.PutUint64(req[0:], connID)
	binary.BigEndian.PutUint32(req[8:], actionAnnounce)
	binary.BigEndian.PutUint32(req[12:], tid)
	copy(req[16:36], r.InfoHash[:])
	copy(req[36:56], r.PeerID[:])
	binary.BigEndian.PutUint64(req[56:], uint64(r.Downloaded))
	binary.BigEndian.PutUint64(req[64:], uint64(r.Left))
	binary.BigEndian.PutUint64(req[72:], uint64(r.Uploaded))
	binary.BigEndian.PutUint32(req[80:], udpEvent(r.Event))
	// req[84:88] is ip address, 0 means the sender's address
	binary.BigEndian.PutUint32(req[88:], random.Uint32())
	binary.BigEndian.PutUint32(req[92:], uint32(numWant))
	binary.BigEndian.PutUint16(req[96:], r.Port)

	res, err := t.roundTrip(ctx, conn, req[:], actionAnnounce, tid, announceHeaderLength)
	if err != nil {
		return AnnounceResponse{}, errgo.Wrap(err, "udp tracker announce")
	}

	result := AnnounceResponse{
		Interval: time.Duration(binary.BigEndian.Uint32(res[8:])) * time.Second,
		Leechers: int(binary.BigEndian.Uint32(res[12:])),
		Seeders:  int(binary.BigEndian.Uint32(res[16:])),
	}

	if result.Interval <= 0 {
		result.Interval = defaultInterval
	}

	body := res[announceHeaderLength:]
	// ignore trailing partial entry
	body = body[:len(body)-len(body)%(addrLen+2)]

	result.Peers, err = parseCompactPeers(body, addrLen)
	if err != nil {
		return result, err
	}

	return result, nil
}

// roundTrip sends req and reads one response, checking its action and transaction id.
// The request is sent again with a doubled wait each time no response arrives, until ctx is done.
func (t *udpTracker) roundTrip(ctx context.Context, conn net.Conn, req []byte, action, tid uint32, minLength int) ([]byte, error) {
	buf := packetPool.Get()
	defer packetPool.Put(buf)

	retry := t.retry
	if retry <= 0 {
		retry = udpRetry
	}

	var n int
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		wait := time.Now().Add(retry << attempt)
		last := false
		if deadline, ok := ctx.Deadline(); ok && !deadline.After(wait) {
			wait = deadline
			last = true
		}

		if err := conn.SetReadDeadline(wait); err != nil {
			return nil, err
		}

		if _, err := conn.Write(req); err != nil {
			return nil, err
		}

		var err error
		n, err = conn.Read(buf[:])
		if err == nil {
			break
		}

		var ne net.Error
		if last || !errors.As(err, &ne) || !ne.Timeout() || ctx.Err() != nil {
			return nil, err
		}

		log.Debug().Str("url", t.url).Int("attempt", attempt+1).Msg("no answer from udp tracker, retry")
	}

	res := bytes.Clone(buf[:n])

	if n < 8 {
		return nil, fmt.Errorf("udp tracker response too short: %d bytes", n)
	}

	if binary.BigEndian.Uint32(res[4:]) != tid {
		return nil, errTransactionMismatch
	}

	gotAction := binary.BigEndian.Uint32(res[0:])
	if gotAction == actionError {
		return nil, &FailureError{URL: t.url, Reason: string(res[8:])}
	}

	if gotAction != action {
		return nil, fmt.Errorf("udp tracker responded with action %d, expecting %d", gotAction, action)
	}

	if n < minLength {
		return nil, fmt.Errorf("udp tracker response too short: %d bytes", n)
	}

	return res, nil
}
