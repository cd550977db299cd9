package download

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"github.com/mxk/go-flowrate/flowrate"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"tget/internal/bep40"
	"tget/internal/meta"
	"tget/internal/peer"
	"tget/internal/pkg/bm"
	"tget/internal/pkg/heap"
	"tget/internal/pkg/random"
)

//go:generate stringer -type=State -linecomment
type State uint32

const (
	Stopped     State = iota // stopped
	Connecting               // connecting
	Downloading              // downloading
	Done                     // done
	Error                    // error
)

var (
	ErrNoPeers    = errors.New("no usable peer")
	ErrIncomplete = errors.New("download incomplete")
	ErrIntegrity  = errors.New("piece hash mismatch")
)

// IntegrityError is reported when a peer sends a piece whose SHA-1 doesn't match the torrent.
type IntegrityError struct {
	Peer  netip.AddrPort
	Index uint32
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("piece %d from %s failed hash check", e.Index, e.Peer)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// PeerSource returns fresh candidate addresses, typically by re-announcing to trackers.
type PeerSource func(ctx context.Context) ([]netip.AddrPort, error)

type Options struct {
	// PublicAddr is our own address as seen by peers, used for BEP 40 ordering when known.
	PublicAddr netip.AddrPort
	Peer       peer.Options
	// MaxInFlight is how many pieces are downloaded at the same time.
	MaxInFlight int
	// MaxRounds bounds how many passes over the working set a piece gets before it's unobtainable.
	MaxRounds int
	// ConnectLimit caps concurrent connection attempts and the size of the working set.
	ConnectLimit int
	// RetryDelay is the pause between two rounds of the same piece.
	RetryDelay time.Duration
	// RefreshInterval is the minimal time between two calls to the PeerSource.
	RefreshInterval time.Duration
	// MaxRate limits the average download rate in bytes per second, 0 means unlimited.
	MaxRate int64
	Preallocate     bool
}

func DefaultOptions() Options {
	return Options{
		Peer:            peer.DefaultOptions(),
		MaxInFlight:     4,
		MaxRounds:       5,
		ConnectLimit:    30,
		RetryDelay:      2 * time.Second,
		RefreshInterval: 30 * time.Second,
		Preallocate:     true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = d.MaxInFlight
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = d.MaxRounds
	}
	if o.ConnectLimit <= 0 {
		o.ConnectLimit = d.ConnectLimit
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = d.RefreshInterval
	}
	return o
}

// Result summarizes a finished Run.
type Result struct {
	Unobtainable []uint32
	Downloaded   int64
	Corrupted    int64
	NumPieces    uint32
	Completed    uint32
}

// Download assembles one torrent into a single output file.
type Download struct {
	log               zerolog.Logger
	err               atomic.Error
	lastRefresh       time.Time
	source            PeerSource
	bucket            *ratelimit.Bucket
	file              *os.File
	m                 *meta.Metadata
	bm                *bm.Bitmap
	ioDown            *flowrate.Monitor
	conn              *xsync.MapOf[netip.AddrPort, *peer.Peer]
	connectionHistory *xsync.MapOf[netip.AddrPort, connHistory]
	peers             *heap.Heap[peerWithPriority]
	sem               *semaphore.Weighted
	released          chan struct{}
	outputPath        string
	key               []byte
	unobtainable      []uint32
	opt               Options
	downloaded        atomic.Int64
	corrupted         atomic.Int64
	state             atomic.Uint32
	fm                sync.Mutex
	um                sync.Mutex
	peersMutex        sync.Mutex
	refreshMutex      sync.Mutex
	localID           peer.ID
}

type connHistory struct {
	lastTry   time.Time
	err       error
	connected bool
}

type peerWithPriority struct {
	addrPort netip.AddrPort
	priority uint32
}

// Less puts higher BEP 40 priority first.
func (p peerWithPriority) Less(o peerWithPriority) bool {
	return p.priority > o.priority
}

func New(m *meta.Metadata, outputPath string, localID peer.ID, opt Options) *Download {
	opt = opt.withDefaults()

	var bucket *ratelimit.Bucket
	if opt.MaxRate > 0 {
		// a whole piece must fit in the bucket, or Take would never catch up
		bucket = ratelimit.NewBucketWithRate(float64(opt.MaxRate), max(opt.MaxRate, m.PieceLength))
	}

	return &Download{
		bucket:            bucket,
		log:               log.With().Stringer("info_hash", m.Hash).Logger(),
		m:                 m,
		outputPath:        outputPath,
		localID:           localID,
		opt:               opt,
		key:               random.Bytes(4),
		bm:                bm.New(m.NumPieces),
		ioDown:            flowrate.New(time.Second, time.Second),
		conn:              xsync.NewMapOf[netip.AddrPort, *peer.Peer](),
		connectionHistory: xsync.NewMapOf[netip.AddrPort, connHistory](),
		peers:             heap.New[peerWithPriority](),
		sem:               semaphore.NewWeighted(int64(opt.ConnectLimit)),
		released:          make(chan struct{}, 1),
	}
}

// SetPeerSource sets the hook used to find more peers when no connected peer can serve a piece.
func (d *Download) SetPeerSource(src PeerSource) {
	d.refreshMutex.Lock()
	d.source = src
	d.refreshMutex.Unlock()
}

// AddPeers queues connection candidates. Addresses already connected or that failed before are skipped.
func (d *Download) AddPeers(addrs ...netip.AddrPort) {
	d.peersMutex.Lock()
	defer d.peersMutex.Unlock()

	for _, addr := range addrs {
		addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
		if !addr.IsValid() || addr.Port() == 0 {
			continue
		}

		if _, ok := d.conn.Load(addr); ok {
			continue
		}

		if h, ok := d.connectionHistory.Load(addr); ok && h.err != nil {
			continue
		}

		d.peers.Push(peerWithPriority{
			addrPort: addr,
			priority: bep40.Priority(d.key, d.opt.PublicAddr, addr),
		})
	}
}

func (d *Download) setError(err error) {
	if d.err.Load() == nil {
		d.err.Store(err)
	}
	d.state.Store(uint32(Error))
}
