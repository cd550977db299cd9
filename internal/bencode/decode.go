package bencode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/docker/go-units"
)

// MaxDepth is the deepest nesting of lists and dictionaries the decoder accepts.
const MaxDepth = 512

// string payloads are read in steps of this size, so a forged length prefix can't make
// the decoder allocate more than the input actually contains.
const readStep = 64 * units.KiB

// Decoder reads bencoded values from a stream.
// It buffers its input, so it may read past the end of the value it returns.
type Decoder struct {
	r      *bufio.Reader
	offset int64
	depth  int
}

func NewDecoder(r io.Reader) *Decoder {
	if br, ok := r.(*bufio.Reader); ok {
		return &Decoder{r: br}
	}

	return &Decoder{r: bufio.NewReader(r)}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// Decode reads exactly one value.
func (d *Decoder) Decode() (Value, error) {
	b, err := d.readByte()
	if err != nil {
		return nil, err
	}

	return d.value(b)
}

// Decode reads one value from r.
func Decode(r io.Reader) (Value, error) {
	return NewDecoder(r).Decode()
}

// DecodeBytes decodes b, which must hold exactly one value and nothing else.
func DecodeBytes(b []byte) (Value, error) {
	d := NewDecoder(bytes.NewReader(b))

	v, err := d.Decode()
	if err != nil {
		return nil, err
	}

	if d.offset != int64(len(b)) {
		return nil, &FormatError{Offset: d.offset, Msg: "trailing data after value"}
	}

	return v, nil
}

func (d *Decoder) errorf(offset int64, format string, args ...any) error {
	return &FormatError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (d *Decoder) readByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, &FormatError{Offset: d.offset, Msg: "unexpected end of input", Err: err}
	}

	d.offset++

	return b, nil
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

func (d *Decoder) value(prefix byte) (Value, error) {
	switch {
	case prefix == 'i':
		return d.integer()
	case prefix == 'l':
		return d.list()
	case prefix == 'd':
		return d.dict()
	case isDigit(prefix):
		return d.string(prefix)
	}

	return nil, d.errorf(d.offset-1, "unknown prefix %q", prefix)
}

func (d *Decoder) enter() error {
	d.depth++
	if d.depth > MaxDepth {
		return d.errorf(d.offset-1, "nesting deeper than %d", MaxDepth)
	}

	return nil
}

func (d *Decoder) integer() (Int, error) {
	start := d.offset

	var buf [24]byte
	digits := buf[:0]

	for {
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}

		if b == 'e' {
			break
		}

		switch {
		case b == '-':
			if len(digits) != 0 {
				return 0, d.errorf(d.offset-1, "unexpected '-' in integer")
			}
		case !isDigit(b):
			return 0, d.errorf(d.offset-1, "invalid byte %q in integer", b)
		}

		if len(digits) == len(buf) {
			return 0, d.errorf(start, "integer too long")
		}

		digits = append(digits, b)
	}

	abs := digits
	if len(abs) != 0 && abs[0] == '-' {
		abs = abs[1:]
	}

	switch {
	case len(abs) == 0:
		return 0, d.errorf(start, "empty integer")
	case len(abs) > 1 && abs[0] == '0':
		return 0, d.errorf(start, "integer with leading zero")
	case len(abs) != len(digits) && abs[0] == '0':
		return 0, d.errorf(start, "negative zero")
	}

	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return 0, d.errorf(start, "integer %s out of range", digits)
	}

	return Int(n), nil
}

func (d *Decoder) string(first byte) (String, error) {
	start := d.offset - 1
	n := int64(first - '0')

	for {
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}

		if b == ':' {
			break
		}

		if !isDigit(b) {
			return nil, d.errorf(d.offset-1, "invalid byte %q in string length", b)
		}

		if first == '0' {
			return nil, d.errorf(start, "string length with leading zero")
		}

		if n > (math.MaxInt64-9)/10 {
			return nil, d.errorf(start, "string length out of range")
		}

		n = n*10 + int64(b-'0')
	}

	if n == 0 {
		return String{}, nil
	}

	var buf bytes.Buffer
	buf.Grow(int(min(n, readStep)))

	for int64(buf.Len()) < n {
		step := min(n-int64(buf.Len()), readStep)
		copied, err := io.CopyN(&buf, d.r, step)
		d.offset += copied
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, &FormatError{
				Offset: d.offset,
				Msg:    fmt.Sprintf("string declared %d bytes but input ended", n),
				Err:    err,
			}
		}
	}

	return buf.Bytes(), nil
}

func (d *Decoder) list() (List, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()

	l := List{}

	for {
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}

		if b == 'e' {
			return l, nil
		}

		v, err := d.value(b)
		if err != nil {
			return nil, err
		}

		l = append(l, v)
	}
}

func (d *Decoder) dict() (Dict, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer func() { d.depth-- }()

	dict := Dict{}
	var prev string
	first := true

	for {
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}

		if b == 'e' {
			return dict, nil
		}

		keyStart := d.offset - 1

		if !isDigit(b) {
			return nil, d.errorf(keyStart, "dictionary key must be a byte string, got prefix %q", b)
		}

		raw, err := d.string(b)
		if err != nil {
			return nil, err
		}

		key := string(raw)

		if key == "" {
			return nil, d.errorf(keyStart, "empty dictionary key")
		}

		if !first {
			if key == prev {
				return nil, d.errorf(keyStart, "duplicate key %q", key)
			}
			if key < prev {
				return nil, d.errorf(keyStart, "key %q is not sorted after %q", key, prev)
			}
		}

		b, err = d.readByte()
		if err != nil {
			return nil, err
		}

		if b == 'e' {
			return nil, d.errorf(d.offset-1, "missing value for key %q", key)
		}

		v, err := d.value(b)
		if err != nil {
			return nil, err
		}

		dict[key] = v
		prev = key
		first = false
	}
}
