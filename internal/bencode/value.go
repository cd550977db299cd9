// Package bencode implements a strict bencode codec.
//
// Decoding only accepts the canonical form: integers without leading zeros or "-0",
// byte string lengths without leading zeros, and dictionaries whose keys are unique
// and sorted. Encoding always produces the canonical form, so a decoded value
// re-encodes to the exact bytes it was decoded from.
package bencode

import (
	"bytes"
	"fmt"
)

// Value is one of String, Int, List or Dict.
type Value interface {
	bencode()
}

// String is an opaque byte string. It is not assumed to hold valid UTF-8.
type String []byte

type Int int64

type List []Value

// Dict maps raw byte-string keys to values.
type Dict map[string]Value

func (String) bencode() {}
func (Int) bencode()    {}
func (List) bencode()   {}
func (Dict) bencode()   {}

// Kind returns a short name of the variant, used in error messages.
func Kind(v Value) string {
	switch v.(type) {
	case String:
		return "string"
	case Int:
		return "integer"
	case List:
		return "list"
	case Dict:
		return "dictionary"
	case nil:
		return "nil"
	}

	panic(fmt.Sprintf("bencode: unexpected value type %T", v))
}

// Equal reports whether a and b are the same value tree.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && bytes.Equal(av, bv)
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Dict:
		bv, ok := b.(Dict)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}

	panic(fmt.Sprintf("bencode: unexpected value type %T", a))
}

// Bytes returns the byte string stored at key.
func (d Dict) Bytes(key string) ([]byte, bool) {
	v, ok := d[key].(String)
	return v, ok
}

// Text returns the byte string stored at key converted to a Go string.
func (d Dict) Text(key string) (string, bool) {
	v, ok := d[key].(String)
	return string(v), ok
}

func (d Dict) Int(key string) (int64, bool) {
	v, ok := d[key].(Int)
	return int64(v), ok
}

func (d Dict) List(key string) (List, bool) {
	v, ok := d[key].(List)
	return v, ok
}

func (d Dict) Dict(key string) (Dict, bool) {
	v, ok := d[key].(Dict)
	return v, ok
}

// Has reports whether key is present, whatever its type.
func (d Dict) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Require returns the value at key, or a *FormatError if it is missing or is not of the
// same variant as want.
func Require[T Value](d Dict, key string) (T, error) {
	var zero T

	v, ok := d[key]
	if !ok {
		return zero, &FormatError{Offset: -1, Msg: fmt.Sprintf("missing key %q", key)}
	}

	t, ok := v.(T)
	if !ok {
		return zero, &FormatError{
			Offset: -1,
			Msg:    fmt.Sprintf("key %q: expected %s, got %s", key, Kind(zero), Kind(v)),
		}
	}

	return t, nil
}
