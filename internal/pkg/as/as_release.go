//go:build release

package as

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func Uint16[T integer](v T) uint16 {
	return uint16(v)
}

func Uint32[T integer](v T) uint32 {
	return uint32(v)
}

func Int32[T integer](v T) int32 {
	return int32(v)
}
