package peer

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"tget/internal/proto"
)

var (
	// ErrProtocol is returned when the remote peer violates the wire protocol.
	ErrProtocol = errors.New("peer protocol violation")
	// ErrTimeout is returned when the peer doesn't answer in time.
	ErrTimeout = errors.New("peer timeout")
	// ErrChoked is returned when the peer chokes us, before or during a transfer.
	ErrChoked = errors.New("peer choked us")
	// ErrNotAvailable is returned when asking for a piece the peer never advertised.
	ErrNotAvailable = errors.New("peer doesn't have piece")
	// ErrNotReady is returned when the connection is not initialized or already closed.
	ErrNotReady = errors.New("peer not ready")
	// ErrClosed is returned when the remote side closed the connection.
	ErrClosed = errors.New("peer closed connection")

	ErrInfoHashMismatch = fmt.Errorf("%w: info hash mismatch", ErrProtocol)
)

func protocolError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// wrapIOError maps socket errors to the package taxonomy.
func wrapIOError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, proto.ErrFrameTooLarge),
		errors.Is(err, proto.ErrInvalidPayload),
		errors.Is(err, proto.ErrHandshakeMismatch):
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
