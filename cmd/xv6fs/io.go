package main

import (
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/tiqwab/xv6fs/fs"
)

// fdReader and fdWriter adapt an open descriptor to the io interfaces.
type fdReader struct {
	p  *fs.Proc
	fd fs.Fd
}

func (r fdReader) Read(b []byte) (int, error) {
	n, err := r.p.Read(r.fd, b)
	if err != nil {
		return int(n), err
	}
	if n == 0 && len(b) > 0 {
		return 0, io.EOF
	}
	return int(n), nil
}

type fdWriter struct {
	p  *fs.Proc
	fd fs.Fd
}

func (w fdWriter) Write(b []byte) (int, error) {
	n, err := w.p.Write(w.fd, b)
	return int(n), err
}

// sumFile returns the blake3 digest of the contents of path.
func sumFile(p *fs.Proc, path string) (string, uint64, error) {
	fd, err := p.Open(path, fs.O_RDONLY)
	if err != nil {
		return "", 0, err
	}
	defer p.Close(fd)
	h := blake3.New()
	n, err := io.Copy(h, fdReader{p: p, fd: fd})
	if err != nil {
		return "", 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), uint64(n), nil
}
