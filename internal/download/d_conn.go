package download

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/sourcegraph/conc"

	"tget/internal/peer"
)

// connectToPeers dials every queued candidate, at most ConnectLimit at the same time,
// and returns once every attempt finished. Peers that fail are dropped and never redialled.
func (d *Download) connectToPeers(ctx context.Context) {
	wg := conc.NewWaitGroup()
	defer wg.Wait()

	for {
		addr, ok := d.nextCandidate()
		if !ok {
			return
		}

		if err := d.sem.Acquire(ctx, 1); err != nil {
			return
		}

		wg.Go(func() {
			defer d.sem.Release(1)
			d.connectPeer(ctx, addr)
		})
	}
}

func (d *Download) nextCandidate() (netip.AddrPort, bool) {
	d.peersMutex.Lock()
	defer d.peersMutex.Unlock()

	for d.conn.Size() < d.opt.ConnectLimit {
		pp, ok := d.peers.Pop()
		if !ok {
			break
		}

		if _, ok := d.conn.Load(pp.addrPort); ok {
			continue
		}

		if h, ok := d.connectionHistory.Load(pp.addrPort); ok && h.err != nil {
			continue
		}

		return pp.addrPort, true
	}

	return netip.AddrPort{}, false
}

func (d *Download) connectPeer(ctx context.Context, addr netip.AddrPort) {
	ch := connHistory{lastTry: time.Now()}
	defer func() {
		d.connectionHistory.Store(addr, ch)
	}()

	p, err := peer.Dial(ctx, addr, d.m.Hash, d.localID, d.m.NumPieces, d.opt.Peer)
	if err != nil {
		ch.err = err
		d.log.Debug().Err(err).Stringer("addr", addr).Msg("failed to connect to peer")
		return
	}

	if err := p.Init(ctx); err != nil {
		_ = p.Close()
		ch.err = err
		d.log.Debug().Err(err).Stringer("addr", addr).Msg("peer failed to initialize")
		return
	}

	ch.connected = true

	if _, loaded := d.conn.LoadOrStore(addr, p); loaded {
		_ = p.Close()
		return
	}

	d.log.Debug().Stringer("addr", addr).Stringer("peer_id", p.RemoteID()).Msg("peer connected")

	go func() {
		<-p.Done()
		d.conn.Compute(addr, func(old *peer.Peer, loaded bool) (*peer.Peer, bool) {
			return old, !loaded || old == p
		})
	}()
}

// dropPeer closes p and removes it from the working set.
func (d *Download) dropPeer(p *peer.Peer, err error) {
	d.log.Debug().Err(err).Stringer("addr", p.Address).Msg("drop peer")
	_ = p.Close()
}

// refresh asks the PeerSource for more candidates and connects to them.
// Calls closer than RefreshInterval apart are skipped, as are calls made while another refresh runs.
func (d *Download) refresh(ctx context.Context, force bool) {
	if !d.refreshMutex.TryLock() {
		return
	}
	defer d.refreshMutex.Unlock()

	if !force && time.Since(d.lastRefresh) < d.opt.RefreshInterval {
		return
	}
	d.lastRefresh = time.Now()

	if d.source != nil {
		addrs, err := d.source(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.log.Warn().Err(err).Msg("failed to refresh peers")
			}
		} else {
			d.log.Debug().Int("count", len(addrs)).Msg("got peers")
			d.AddPeers(addrs...)
		}
	}

	d.connectToPeers(ctx)
}

func (d *Download) closePeers() {
	d.conn.Range(func(addr netip.AddrPort, p *peer.Peer) bool {
		_ = p.Close()
		return true
	})
	d.conn.Clear()
}
