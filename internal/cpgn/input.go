package cpgn

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/freeeve/chessexp/internal/fs"
)

// countingReader counts the bytes read from the underlying file, before any
// decompression.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// input is an open compact-notation source. Files ending in .gz or .zst are
// decompressed on the fly.
type input struct {
	io.Reader
	f     fs.File
	raw   *countingReader
	size  int64
	close func()
}

func openInput(fsys fs.FileSystem, path string) (*input, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	in := &input{f: f, raw: &countingReader{r: f}, size: info.Size(), close: func() {}}
	switch lower := strings.ToLower(path); {
	case strings.HasSuffix(lower, ".zst"):
		dec, err := zstd.NewReader(in.raw, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd reader for %s: %w", path, err)
		}
		in.Reader, in.close = dec, dec.Close
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(in.raw)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader for %s: %w", path, err)
		}
		in.Reader, in.close = zr, func() { zr.Close() }
	default:
		in.Reader = in.raw
	}
	return in, nil
}

// Percent returns how much of the file has been consumed.
func (in *input) Percent() float64 {
	if in.size <= 0 {
		return 100
	}
	return min(100, float64(in.raw.n)*100/float64(in.size))
}

func (in *input) Close() error {
	in.close()
	return in.f.Close()
}
