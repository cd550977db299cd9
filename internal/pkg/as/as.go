//go:build !release

// Package as converts between integer types, panicking on overflow in non-release builds.
package as

import (
	"fmt"
)

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func check[R, T integer](v T, name string) R {
	r := R(v)
	if T(r) != v || (v < 0) != (r < 0) {
		panic(fmt.Sprintf("%d overflow %s", v, name))
	}

	return r
}

func Uint16[T integer](v T) uint16 {
	return check[uint16](v, "uint16")
}

func Uint32[T integer](v T) uint32 {
	return check[uint32](v, "uint32")
}

func Int32[T integer](v T) int32 {
	return check[int32](v, "int32")
}
