package peer

import (
	"bufio"
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"tget/internal/meta"
	"tget/internal/pkg/bm"
	"tget/internal/pkg/global"
	"tget/internal/proto"
)

const DefaultBlockSize = 16 * units.KiB

// idle connections are checked with keep-alive, and dropped when nothing arrives for idleTimeout.
const keepAliveInterval = 90 * time.Second
const idleTimeout = 4 * time.Minute

// requests of aborted transfers that are remembered, so their late blocks can be dropped.
const maxStale = 8

type Options struct {
	DialTimeout time.Duration
	InitTimeout time.Duration
	ReadTimeout time.Duration
	BlockSize   uint32
}

func DefaultOptions() Options {
	return Options{
		DialTimeout: 10 * time.Second,
		InitTimeout: 30 * time.Second,
		ReadTimeout: 30 * time.Second,
		BlockSize:   DefaultBlockSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.InitTimeout <= 0 {
		o.InitTimeout = d.InitTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.BlockSize == 0 {
		o.BlockSize = d.BlockSize
	}
	return o
}

// Peer is one outgoing connection to a remote peer.
//
// After Init a background loop owns the read side of the connection: it keeps availability and
// choke state current and hands piece messages to DownloadPiece.
type Peer struct {
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	conn     net.Conn
	r        *bufio.Reader
	bitmap   *bm.Bitmap
	pieces   chan proto.ChunkResponse
	choked   chan struct{}
	stale    []proto.ChunkRequest
	done     chan struct{}
	err      error
	opt      Options
	state    atomic.Uint32
	unchoked atomic.Bool
	leased   atomic.Bool
	closed   atomic.Bool
	wm       sync.Mutex
	tm       sync.Mutex
	Address  netip.AddrPort
	InfoHash meta.Hash
	localID  ID
	remoteID ID
}

// Dial connects to addr and performs the handshake. The returned peer still needs Init.
func Dial(
	ctx context.Context,
	addr netip.AddrPort,
	infoHash meta.Hash,
	localID ID,
	numPieces uint32,
	opt Options,
) (*Peer, error) {
	opt = opt.withDefaults()

	dialer := global.Dialer
	dialer.Timeout = opt.DialTimeout

	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, wrapIOError(err)
	}

	p := New(conn, addr, infoHash, localID, numPieces, opt)
	if err := p.Handshake(); err != nil {
		_ = p.Close()
		return nil, err
	}

	return p, nil
}

// New wraps an established connection.
func New(conn net.Conn, addr netip.AddrPort, infoHash meta.Hash, localID ID, numPieces uint32, opt Options) *Peer {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Peer{
		log:      log.With().Stringer("addr", addr).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		conn:     conn,
		r:        bufio.NewReader(conn),
		bitmap:   bm.New(numPieces),
		pieces:   make(chan proto.ChunkResponse, 1),
		choked:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		opt:      opt.withDefaults(),
		Address:  addr,
		InfoHash: infoHash,
		localID:  localID,
	}

	p.state.Store(uint32(Connecting))

	return p
}

func (p *Peer) State() State {
	return State(p.state.Load())
}

func (p *Peer) setState(s State) {
	p.state.Store(uint32(s))
}

func (p *Peer) RemoteID() ID {
	return p.remoteID
}

func (p *Peer) Unchoked() bool {
	return p.unchoked.Load()
}

// HasPiece reports whether the peer advertised piece i. Out of range indexes are never available.
func (p *Peer) HasPiece(i uint32) bool {
	return i < p.bitmap.Len() && p.bitmap.Get(i)
}

// TryAcquire takes the exclusive lease on this peer, returning false if someone else holds it.
func (p *Peer) TryAcquire() bool {
	return p.leased.CompareAndSwap(false, true)
}

func (p *Peer) Release() {
	p.leased.Store(false)
}

// Done is closed once the connection is closed.
func (p *Peer) Done() <-chan struct{} {
	return p.ctx.Done()
}

func (p *Peer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.log.Trace().Msg("close")
	p.setState(Closed)
	p.cancel()

	return p.conn.Close()
}

// Handshake exchanges the 68-byte handshake and checks the remote info-hash.
func (p *Peer) Handshake() error {
	p.setState(Handshaking)

	_ = p.conn.SetDeadline(time.Now().Add(p.opt.InitTimeout))
	defer func() { _ = p.conn.SetDeadline(time.Time{}) }()

	if err := p.write(func() error { return proto.SendHandshake(p.conn, p.InfoHash, p.localID) }); err != nil {
		return wrapIOError(err)
	}

	h, err := proto.ReadHandshake(p.r)
	if err != nil {
		return wrapIOError(err)
	}

	if h.InfoHash != p.InfoHash {
		p.log.Debug().Hex("info_hash", h.InfoHash[:]).Msg("peer info hash mismatch")
		return ErrInfoHashMismatch
	}

	p.remoteID = h.PeerID
	p.log = p.log.With().Stringer("peer_id", p.remoteID).Logger()
	p.setState(AwaitingBitfield)

	p.log.Trace().Msg("handshake done")

	return nil
}

// write serializes writers on the connection and bounds each write by ReadTimeout.
func (p *Peer) write(fn func() error) error {
	p.wm.Lock()
	defer p.wm.Unlock()

	_ = p.conn.SetWriteDeadline(time.Now().Add(p.opt.ReadTimeout))
	return fn()
}
