package file

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// readBufSize is the buffered-reader size for input streaming. Inputs are
// read exactly once, front to back.
const readBufSize = 1 << 20 // 1 MiB

// reader bundles the decoded stream with the closers that back it.
type reader struct {
	io.Reader
	closers []io.Closer
}

func (r *reader) Close() error {
	var err error
	for _, c := range r.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open opens path for sequential streaming. Files ending in ".gz" are
// decompressed transparently; a corrupt gzip header surfaces here, while
// mid-stream corruption surfaces from Read.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	advise(f)

	br := bufio.NewReaderSize(f, readBufSize)
	if !strings.HasSuffix(path, ".gz") {
		return &reader{Reader: br, closers: []io.Closer{f}}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip %s: %w", path, err)
	}
	return &reader{Reader: zr, closers: []io.Closer{zr, f}}, nil
}
