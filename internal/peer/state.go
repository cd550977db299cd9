package peer

//go:generate stringer -type=State -linecomment
type State uint32

const (
	Connecting       State = iota // connecting
	Handshaking                   // handshaking
	AwaitingBitfield              // awaiting-bitfield
	Ready                         // ready
	Transferring                  // transferring
	Closed                        // closed
)
