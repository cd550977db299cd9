package peer

import (
	"context"
	"errors"
	"slices"
	"time"

	"tget/internal/pkg/as"
	"tget/internal/proto"
)

// DownloadPiece fetches piece index of the given length, one block at a time in increasing offset order.
//
// The peer must be initialized, unchoked and must have advertised the piece. A choke received while
// waiting aborts the transfer with ErrChoked. A block that doesn't match the outstanding request, or
// a block not arriving within ReadTimeout, closes the connection. Late blocks of an aborted transfer
// are dropped.
func (p *Peer) DownloadPiece(ctx context.Context, index uint32, length int64) ([]byte, error) {
	switch p.State() {
	case Ready, Transferring:
	default:
		return nil, ErrNotReady
	}

	if !p.HasPiece(index) {
		return nil, ErrNotAvailable
	}

	p.tm.Lock()
	defer p.tm.Unlock()

	p.drain()

	if !p.unchoked.Load() {
		return nil, ErrChoked
	}

	p.state.CompareAndSwap(uint32(Ready), uint32(Transferring))
	defer p.state.CompareAndSwap(uint32(Transferring), uint32(Ready))

	buf := make([]byte, length)
	blockSize := int64(p.opt.BlockSize)

	for begin := int64(0); begin < length; begin += blockSize {
		req := proto.ChunkRequest{
			PieceIndex: index,
			Begin:      as.Uint32(begin),
			Length:     as.Uint32(min(blockSize, length-begin)),
		}

		if err := p.write(func() error { return proto.SendRequest(p.conn, req) }); err != nil {
			_ = p.Close()
			return nil, wrapIOError(err)
		}

		res, err := p.waitBlock(ctx, req)
		if err != nil {
			if errors.Is(err, ErrChoked) || ctx.Err() != nil {
				p.abandon(req)
			}
			return nil, err
		}

		copy(buf[begin:], res.Data)
	}

	p.log.Trace().Uint32("index", index).Msg("piece downloaded")

	return buf, nil
}

func (p *Peer) waitBlock(ctx context.Context, req proto.ChunkRequest) (proto.ChunkResponse, error) {
	timer := time.NewTimer(p.opt.ReadTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return proto.ChunkResponse{}, ctx.Err()
		case <-p.done:
			if p.err == nil {
				return proto.ChunkResponse{}, ErrClosed
			}
			return proto.ChunkResponse{}, p.err
		case <-p.choked:
			return proto.ChunkResponse{}, ErrChoked
		case <-timer.C:
			_ = p.Close()
			return proto.ChunkResponse{}, ErrTimeout
		case res := <-p.pieces:
			if res.PieceIndex == req.PieceIndex && res.Begin == req.Begin && len(res.Data) == int(req.Length) {
				return res, nil
			}

			if p.isStale(res) {
				p.log.Trace().Uint32("index", res.PieceIndex).Uint32("begin", res.Begin).Msg("drop late block")
				continue
			}

			_ = p.Close()
			return proto.ChunkResponse{}, protocolError("requested block %d+%d (%d bytes), got %d+%d (%d bytes)",
				req.PieceIndex, req.Begin, req.Length, res.PieceIndex, res.Begin, len(res.Data))
		}
	}
}

// abandon remembers a request whose transfer was aborted, its block may still arrive later.
func (p *Peer) abandon(req proto.ChunkRequest) {
	if len(p.stale) == maxStale {
		p.stale = p.stale[1:]
	}

	p.stale = append(p.stale, req)
}

func (p *Peer) isStale(res proto.ChunkResponse) bool {
	for i, req := range p.stale {
		if req.PieceIndex == res.PieceIndex && req.Begin == res.Begin && int(req.Length) == len(res.Data) {
			p.stale = slices.Delete(p.stale, i, i+1)
			return true
		}
	}

	return false
}

// drain drops blocks and choke notices left over from an earlier aborted transfer.
// Blocks still in flight are recognized later by isStale.
func (p *Peer) drain() {
	for {
		select {
		case res := <-p.pieces:
			p.isStale(res)
		case <-p.choked:
		default:
			return
		}
	}
}
