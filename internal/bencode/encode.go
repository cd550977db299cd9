package bencode

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// Encode returns the canonical encoding of v.
// It panics if v (or anything nested in it) is nil.
func Encode(v Value) []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = appendValue(buf.B, v)

	return slices.Clone(buf.B)
}

// EncodeTo writes the canonical encoding of v to w.
func EncodeTo(w io.Writer, v Value) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = appendValue(buf.B, v)

	_, err := w.Write(buf.B)
	return err
}

func appendString(b []byte, s []byte) []byte {
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, ':')
	return append(b, s...)
}

func appendValue(b []byte, v Value) []byte {
	switch v := v.(type) {
	case String:
		return appendString(b, v)
	case Int:
		b = append(b, 'i')
		b = strconv.AppendInt(b, int64(v), 10)
		return append(b, 'e')
	case List:
		b = append(b, 'l')
		for _, item := range v {
			b = appendValue(b, item)
		}
		return append(b, 'e')
	case Dict:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		// plain string comparison in Go is byte-wise, which is the order bencode requires
		slices.Sort(keys)

		b = append(b, 'd')
		for _, k := range keys {
			b = strconv.AppendInt(b, int64(len(k)), 10)
			b = append(b, ':')
			b = append(b, k...)
			b = appendValue(b, v[k])
		}
		return append(b, 'e')
	}

	panic(fmt.Sprintf("bencode: can't encode value of type %T", v))
}
