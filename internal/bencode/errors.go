package bencode

import (
	"errors"
	"fmt"
)

// ErrFormat matches every error returned by the decoder, see errors.Is.
var ErrFormat = errors.New("bencode: malformed input")

// FormatError describes malformed input.
// Offset is the position of the offending byte, or -1 when it is not known.
type FormatError struct {
	Err    error
	Msg    string
	Offset int64
}

func (e *FormatError) Error() string {
	var s string
	if e.Offset >= 0 {
		s = fmt.Sprintf("bencode: %s at offset %d", e.Msg, e.Offset)
	} else {
		s = "bencode: " + e.Msg
	}

	if e.Err != nil {
		return s + ": " + e.Err.Error()
	}

	return s
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
