// Package peertest runs in-process seeders on loopback for wire and download tests.
package peertest

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tget/internal/pkg/bm"
	"tget/internal/proto"
)

// Config controls how a Seeder behaves. The zero value of every field is a well-behaved seeder.
type Config struct {
	// Have lists the advertised pieces. nil advertises every piece.
	Have []uint32
	// Corrupt pieces are served with their first byte flipped.
	Corrupt []uint32
	// HavesAfterBitfield are announced with `have` right after the bitfield.
	HavesAfterBitfield []uint32
	// HaveBeforeBitfield are announced with `have` before the bitfield.
	HaveBeforeBitfield []uint32
	// HaveDuringTransfer are announced, together with a keep-alive and a not-interested,
	// right before the first block is sent.
	HaveDuringTransfer []uint32
	Data               []byte
	PieceLength        int64
	InfoHash           [20]byte
	// BitfieldPadding appends this many 0xff bytes to the bitfield.
	BitfieldPadding int
	// ChokeAfter sends a choke instead of the n-th block (1-based). 0 never chokes.
	ChokeAfter int
	// DelayFirstBlock holds the first block back for this long.
	DelayFirstBlock time.Duration
	// ShiftOffset answers every request with a wrong block offset.
	ShiftOffset bool
	// NoUnchoke never unchokes.
	NoUnchoke bool
	// WaitInterested unchokes only after the client said it is interested.
	WaitInterested bool
	// ChokeBeforeUnchoke sends a choke right before the unchoke.
	ChokeBeforeUnchoke bool
	// Silent never answers requests.
	Silent bool
}

type Seeder struct {
	t        testing.TB
	l        net.Listener
	cfg      Config
	m        sync.Mutex
	requests []proto.ChunkRequest
	messages []proto.Message
	conns    int
}

// Start listens on a loopback port and serves until the test ends.
func Start(t testing.TB, cfg Config) *Seeder {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &Seeder{t: t, l: l, cfg: cfg}

	t.Cleanup(func() { _ = l.Close() })

	go s.accept()

	return s
}

func (s *Seeder) Addr() netip.AddrPort {
	return s.l.Addr().(*net.TCPAddr).AddrPort()
}

// Requests returns every request received so far, in arrival order.
func (s *Seeder) Requests() []proto.ChunkRequest {
	s.m.Lock()
	defer s.m.Unlock()

	return append([]proto.ChunkRequest(nil), s.requests...)
}

// Messages returns the id of every message received so far, keep-alive excluded.
func (s *Seeder) Messages() []proto.Message {
	s.m.Lock()
	defer s.m.Unlock()

	return append([]proto.Message(nil), s.messages...)
}

// Connections returns how many connections were accepted.
func (s *Seeder) Connections() int {
	s.m.Lock()
	defer s.m.Unlock()

	return s.conns
}

func (s *Seeder) numPieces() uint32 {
	return uint32((int64(len(s.cfg.Data)) + s.cfg.PieceLength - 1) / s.cfg.PieceLength)
}

func (s *Seeder) accept() {
	for {
		conn, err := s.l.Accept()
		if err != nil {
			return
		}

		s.m.Lock()
		s.conns++
		s.m.Unlock()

		go func() {
			defer conn.Close()
			_ = s.serve(conn)
		}()
	}
}

func (s *Seeder) serve(conn net.Conn) error {
	h, err := proto.ReadHandshake(conn)
	if err != nil {
		return err
	}

	var id [20]byte
	copy(id[:], "-SD0000-seederseeder")

	if err := proto.SendHandshake(conn, s.cfg.InfoHash, id); err != nil {
		return err
	}

	if h.InfoHash != s.cfg.InfoHash {
		return errors.New("info hash mismatch")
	}

	have := bm.New(s.numPieces())
	if s.cfg.Have == nil {
		have.Fill()
	}
	for _, i := range s.cfg.Have {
		have.Set(i)
	}

	if err := sendHaves(conn, s.cfg.HaveBeforeBitfield); err != nil {
		return err
	}

	bitfield := have.Bitfield()
	for range s.cfg.BitfieldPadding {
		bitfield = append(bitfield, 0xff)
	}

	if err := proto.SendBitfieldBytes(conn, bitfield); err != nil {
		return err
	}

	if err := sendHaves(conn, s.cfg.HavesAfterBitfield); err != nil {
		return err
	}

	if !s.cfg.WaitInterested {
		if err := s.unchoke(conn); err != nil {
			return err
		}
	}

	var served int

	for {
		f, err := proto.ReadFrame(conn)
		if err != nil {
			return err
		}

		if f.KeepAlive {
			continue
		}

		s.m.Lock()
		s.messages = append(s.messages, f.ID)
		s.m.Unlock()

		if f.ID == proto.Interested && s.cfg.WaitInterested {
			if err := s.unchoke(conn); err != nil {
				return err
			}
			continue
		}

		if f.ID != proto.Request {
			continue
		}

		req, err := proto.ParseRequest(f.Payload)
		if err != nil {
			return err
		}

		s.m.Lock()
		s.requests = append(s.requests, req)
		s.m.Unlock()

		if s.cfg.Silent {
			continue
		}

		served++
		if s.cfg.ChokeAfter != 0 && served == s.cfg.ChokeAfter {
			if err := proto.SendChoke(conn); err != nil {
				return err
			}
			continue
		}

		if served == 1 {
			if err := s.beforeFirstBlock(conn); err != nil {
				return err
			}
		}

		if err := s.respond(conn, req); err != nil {
			return err
		}
	}
}

func (s *Seeder) unchoke(conn net.Conn) error {
	if s.cfg.NoUnchoke {
		return nil
	}

	if s.cfg.ChokeBeforeUnchoke {
		if err := proto.SendChoke(conn); err != nil {
			return err
		}
	}

	return proto.SendUnchoke(conn)
}

func (s *Seeder) beforeFirstBlock(conn net.Conn) error {
	if s.cfg.DelayFirstBlock > 0 {
		time.Sleep(s.cfg.DelayFirstBlock)
	}

	if len(s.cfg.HaveDuringTransfer) == 0 {
		return nil
	}

	if err := sendHaves(conn, s.cfg.HaveDuringTransfer); err != nil {
		return err
	}

	if err := proto.SendKeepAlive(conn); err != nil {
		return err
	}

	return proto.SendNotInterested(conn)
}

func sendHaves(conn net.Conn, pieces []uint32) error {
	for _, i := range pieces {
		if err := proto.SendHave(conn, i); err != nil {
			return err
		}
	}

	return nil
}

func (s *Seeder) respond(conn net.Conn, req proto.ChunkRequest) error {
	start := int64(req.PieceIndex)*s.cfg.PieceLength + int64(req.Begin)
	end := start + int64(req.Length)
	if end > int64(len(s.cfg.Data)) {
		return errors.New("request out of range")
	}

	data := append([]byte(nil), s.cfg.Data[start:end]...)

	for _, i := range s.cfg.Corrupt {
		if i == req.PieceIndex && req.Begin == 0 {
			data[0] ^= 0xff
		}
	}

	begin := req.Begin
	if s.cfg.ShiftOffset {
		begin++
	}

	return proto.SendPiece(conn, proto.ChunkResponse{PieceIndex: req.PieceIndex, Begin: begin, Data: data})
}
