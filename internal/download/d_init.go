package download

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/trim21/errgo"

	"tget/internal/pkg/fallocate"
)

// openFile opens the output file and sizes it to the total content length before any piece is written.
func (d *Download) openFile() error {
	if dir := filepath.Dir(d.outputPath); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return errgo.Wrap(err, fmt.Sprintf("failed to create directory %q", dir))
		}
	}

	f, err := os.OpenFile(d.outputPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return errgo.Wrap(err, fmt.Sprintf("failed to open output file %q", d.outputPath))
	}

	if err := fallocate.Resize(f, d.m.TotalLength, d.opt.Preallocate); err != nil {
		_ = f.Close()
		return err
	}

	d.file = f

	return nil
}
