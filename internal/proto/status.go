package proto

import (
	"io"
)

// messages without payload, they only carry the sender's choke and interest state.

func SendChoke(w io.Writer) error {
	return SendNoPayload(w, Choke)
}

func SendUnchoke(w io.Writer) error {
	return SendNoPayload(w, Unchoke)
}

func SendInterested(w io.Writer) error {
	return SendNoPayload(w, Interested)
}

func SendNotInterested(w io.Writer) error {
	return SendNoPayload(w, NotInterested)
}

// SendKeepAlive writes a zero length frame.
func SendKeepAlive(w io.Writer) error {
	_, err := w.Write([]byte{0, 0, 0, 0})
	return err
}
