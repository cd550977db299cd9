package peer

import (
	"context"
	"time"

	"tget/internal/pkg/bm"
	"tget/internal/proto"
)

// Init reads messages until the peer has sent its bitfield and unchoked us.
// `interested` is sent as soon as the bitfield arrives. The whole negotiation is bounded by InitTimeout.
func (p *Peer) Init(ctx context.Context) error {
	if p.State() != AwaitingBitfield {
		return ErrNotReady
	}

	_ = p.conn.SetReadDeadline(time.Now().Add(p.opt.InitTimeout))
	stop := context.AfterFunc(ctx, func() {
		_ = p.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var gotBitfield bool

	for !gotBitfield || !p.unchoked.Load() {
		f, err := proto.ReadFrame(p.r)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return wrapIOError(err)
		}

		if !f.KeepAlive && f.ID == proto.Piece {
			return protocolError("piece message before any request")
		}

		if err := p.handle(f); err != nil {
			return err
		}

		if !f.KeepAlive && f.ID == proto.Bitfield && !gotBitfield {
			gotBitfield = true
			if err := p.write(func() error { return proto.SendInterested(p.conn) }); err != nil {
				return wrapIOError(err)
			}
			p.log.Trace().Uint32("pieces", p.bitmap.Count()).Msg("receive bitfield, send interested")
		}
	}

	_ = p.conn.SetReadDeadline(time.Time{})
	p.setState(Ready)
	p.log.Debug().Uint32("pieces", p.bitmap.Count()).Msg("peer ready")

	go p.loop()
	go p.keepAlive()

	return nil
}

// handle applies one incoming message to the connection state.
func (p *Peer) handle(f proto.Frame) error {
	if f.KeepAlive {
		return nil
	}

	switch f.ID {
	case proto.Bitfield:
		// merged, so a have sent before the bitfield is kept
		p.bitmap.Merge(bm.FromBitfield(f.Payload, p.bitmap.Len()))
	case proto.Have:
		index, err := proto.ParseHave(f.Payload)
		if err != nil {
			return protocolError("have: %v", err)
		}
		p.bitmap.Set(index)
	case proto.Choke:
		p.unchoked.Store(false)
		select {
		case p.choked <- struct{}{}:
		default:
		}
	case proto.Unchoke:
		p.unchoked.Store(true)
	case proto.Piece:
		r, err := proto.ParsePiece(f.Payload)
		if err != nil {
			return protocolError("piece: %v", err)
		}
		select {
		case p.pieces <- r:
		case <-p.ctx.Done():
			return ErrClosed
		}
	default:
		p.log.Trace().Stringer("message", f.ID).Msg("skip message")
	}

	return nil
}

func (p *Peer) loop() {
	defer close(p.done)
	defer p.Close()

	for {
		_ = p.conn.SetReadDeadline(time.Now().Add(idleTimeout))

		f, err := proto.ReadFrame(p.r)
		if err != nil {
			p.err = wrapIOError(err)
			p.log.Debug().Err(err).Msg("read loop stopped")
			return
		}

		if err := p.handle(f); err != nil {
			p.err = err
			p.log.Debug().Err(err).Msg("read loop stopped")
			return
		}
	}
}

func (p *Peer) keepAlive() {
	timer := time.NewTicker(keepAliveInterval)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
			p.log.Trace().Msg("keep alive")
			if err := p.write(func() error { return proto.SendKeepAlive(p.conn) }); err != nil {
				return
			}
		}
	}
}
