package download

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/panics"
	"github.com/trim21/errgo"

	"tget/internal/meta"
	"tget/internal/peer"
)

const progressInterval = 5 * time.Second

// Run connects to the queued peers and downloads every piece into the output file.
//
// It returns ErrNoPeers when no peer could be used at all, and ErrIncomplete when some pieces
// exhausted their rounds. The Result is filled in both cases.
func (d *Download) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.openFile(); err != nil {
		d.setError(err)
		return d.result(), err
	}
	defer d.file.Close()
	defer d.closePeers()

	d.state.Store(uint32(Connecting))
	d.log.Info().Str("name", d.m.Name).Str("size", humanize.IBytes(uint64(d.m.TotalLength))).
		Uint32("pieces", d.m.NumPieces).Msg("start downloading")

	d.connectToPeers(ctx)
	if d.conn.Size() == 0 {
		d.refresh(ctx, true)
	}

	if d.conn.Size() == 0 {
		d.state.Store(uint32(Error))
		return d.result(), ErrNoPeers
	}

	d.state.Store(uint32(Downloading))

	go d.report(ctx)

	pool, err := ants.NewPool(d.opt.MaxInFlight)
	if err != nil {
		return d.result(), errgo.Wrap(err, "failed to create worker pool")
	}
	defer pool.Release()

	var wg sync.WaitGroup

	for _, index := range d.bm.Missing() {
		if ctx.Err() != nil || d.err.Load() != nil {
			break
		}

		wg.Add(1)
		// blocks while MaxInFlight pieces are being downloaded
		err := pool.Submit(func() {
			defer wg.Done()

			var pc panics.Catcher
			pc.Try(func() {
				if !d.downloadPiece(ctx, index) && ctx.Err() == nil && d.err.Load() == nil {
					d.markUnobtainable(index)
				}
			})

			if r := pc.Recovered(); r != nil {
				d.setError(r.AsError())
			}
		})
		if err != nil {
			wg.Done()
			d.setError(errgo.Wrap(err, "failed to schedule piece"))
			break
		}
	}

	wg.Wait()

	if err := d.err.Load(); err != nil {
		return d.result(), err
	}

	if ctx.Err() != nil {
		d.state.Store(uint32(Stopped))
		return d.result(), ctx.Err()
	}

	r := d.result()
	if len(r.Unobtainable) != 0 {
		d.state.Store(uint32(Error))
		d.log.Warn().Int("count", len(r.Unobtainable)).Msg("some pieces are unobtainable")
		return r, fmt.Errorf("%w: %d of %d pieces unobtainable", ErrIncomplete, len(r.Unobtainable), r.NumPieces)
	}

	d.state.Store(uint32(Done))
	d.log.Info().Str("downloaded", humanize.IBytes(uint64(r.Downloaded))).Msg("download completed")

	return r, nil
}

// downloadPiece tries up to MaxRounds passes over the working set. In each pass every peer that
// advertises the piece and has unchoked us is tried once. It reports whether the piece was written.
func (d *Download) downloadPiece(ctx context.Context, index uint32) bool {
	size := d.m.PieceSize(index)

	for round := 1; round <= d.opt.MaxRounds; round++ {
		tried := make(map[netip.AddrPort]bool)

		for {
			if ctx.Err() != nil || d.err.Load() != nil {
				return false
			}

			busy, done := d.tryPeers(ctx, index, size, tried)
			if done {
				return true
			}

			if busy == 0 {
				break
			}

			// peers left in this pass are serving other pieces
			d.waitRelease(ctx)
		}

		d.log.Debug().Uint32("index", index).Int("round", round).Int("tried", len(tried)).Msg("no peer could serve piece")

		if len(tried) == 0 {
			d.refresh(ctx, false)
		}

		if round < d.opt.MaxRounds {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(d.opt.RetryDelay):
			}
		}
	}

	return false
}

// tryPeers tries every usable peer not in tried. It returns how many usable peers were skipped
// because another piece holds them.
func (d *Download) tryPeers(ctx context.Context, index uint32, size int64, tried map[netip.AddrPort]bool) (int, bool) {
	var candidates []*peer.Peer

	d.conn.Range(func(addr netip.AddrPort, p *peer.Peer) bool {
		if !tried[addr] && p.Unchoked() && p.HasPiece(index) {
			candidates = append(candidates, p)
		}
		return true
	})

	var busy int

	for _, p := range candidates {
		if ctx.Err() != nil {
			return 0, false
		}

		if !p.TryAcquire() {
			busy++
			continue
		}

		tried[p.Address] = true

		if err := d.throttle(ctx, size); err != nil {
			d.release(p)
			return 0, false
		}

		data, err := p.DownloadPiece(ctx, index, size)
		d.release(p)

		if err != nil {
			switch {
			case ctx.Err() != nil:
				return 0, false
			case errors.Is(err, peer.ErrChoked), errors.Is(err, peer.ErrNotAvailable):
				d.log.Debug().Err(err).Stringer("addr", p.Address).Uint32("index", index).Msg("peer can't serve piece")
			default:
				d.dropPeer(p, err)
			}
			continue
		}

		d.ioDown.Update(len(data))
		d.downloaded.Add(int64(len(data)))

		if meta.Hash(sha1.Sum(data)) != d.m.PieceHash(index) {
			d.corrupted.Add(int64(len(data)))
			d.log.Warn().Err(&IntegrityError{Index: index, Peer: p.Address}).Msg("data mismatch")
			continue
		}

		if err := d.writePiece(index, data); err != nil {
			d.setError(err)
			return 0, false
		}

		return 0, true
	}

	return busy, false
}

// throttle waits until size bytes fit in the download rate limit.
func (d *Download) throttle(ctx context.Context, size int64) error {
	if d.bucket == nil {
		return nil
	}

	wait := d.bucket.Take(size)
	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *Download) release(p *peer.Peer) {
	p.Release()

	select {
	case d.released <- struct{}{}:
	default:
	}
}

func (d *Download) waitRelease(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-d.released:
	case <-time.After(50 * time.Millisecond):
	}
}

// writePiece writes a verified piece at its offset. A piece is never written twice.
func (d *Download) writePiece(index uint32, data []byte) error {
	d.fm.Lock()
	defer d.fm.Unlock()

	if d.bm.Get(index) {
		return nil
	}

	if _, err := d.file.WriteAt(data, d.m.PieceOffset(index)); err != nil {
		return errgo.Wrap(err, fmt.Sprintf("failed to write piece %d", index))
	}

	d.bm.Set(index)
	d.log.Trace().Uint32("index", index).Msg("piece written")

	return nil
}

func (d *Download) markUnobtainable(index uint32) {
	d.log.Warn().Uint32("index", index).Int("rounds", d.opt.MaxRounds).Msg("piece is unobtainable")

	d.um.Lock()
	d.unobtainable = append(d.unobtainable, index)
	d.um.Unlock()
}

func (d *Download) result() Result {
	d.um.Lock()
	u := slices.Clone(d.unobtainable)
	d.um.Unlock()

	slices.Sort(u)

	return Result{
		NumPieces:    d.m.NumPieces,
		Completed:    d.bm.Count(),
		Unobtainable: u,
		Downloaded:   d.downloaded.Load(),
		Corrupted:    d.corrupted.Load(),
	}
}
