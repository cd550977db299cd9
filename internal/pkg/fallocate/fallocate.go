// Package fallocate sizes output files.
package fallocate

import (
	"os"

	"github.com/trim21/errgo"
)

// Resize makes f exactly size bytes long.
// When preallocate is set, growing the file reserves disk space instead of leaving a sparse file.
func Resize(f *os.File, size int64, preallocate bool) error {
	stat, err := f.Stat()
	if err != nil {
		return errgo.Wrap(err, "failed to stat file")
	}

	current := stat.Size()

	if preallocate && current < size {
		return errgo.Wrap(reserve(f, current, size-current), "failed to alloc file")
	}

	if current != size {
		return errgo.Wrap(f.Truncate(size), "failed to resize file")
	}

	return nil
}
