package archive

import (
	"archive/tar"
	"io"
	"strings"
)

// blockSize is the tar record unit; file bodies are zero padded to it.
const blockSize = 512

func entryHeader(name string, size int64) *tar.Header {
	if strings.HasSuffix(name, "/") {
		return &tar.Header{Name: name, Mode: 0o755, Typeflag: tar.TypeDir}
	}
	return &tar.Header{Name: name, Mode: 0o644, Size: size, Typeflag: tar.TypeReg}
}

type tarWriter struct {
	closers
	tw *tar.Writer
}

func newTarWriter(w io.Writer, cs closers) *tarWriter {
	tw := tar.NewWriter(w)
	return &tarWriter{closers: append(cs, tw), tw: tw}
}

func (aw *tarWriter) WriteHeader(name string, size int64) error {
	return aw.tw.WriteHeader(entryHeader(name, size))
}

func (aw *tarWriter) Write(p []byte) (int, error) {
	return aw.tw.Write(p)
}

type byteCounter int64

func (c *byteCounter) Write(p []byte) (int, error) {
	*c += byteCounter(len(p))
	return len(p), nil
}

// tarSizer adds up the bytes a tar ball of the given entries takes. Headers are encoded for real so
// long names and large sizes get their extended records; bodies are only counted.
type tarSizer struct {
	n  byteCounter
	tw *tar.Writer
}

func newTarSizer() *tarSizer {
	s := &tarSizer{}
	s.tw = tar.NewWriter(&s.n)
	return s
}

func (s *tarSizer) add(name string, size int64) error {
	hdr := entryHeader(name, size)
	if hdr.Typeflag == tar.TypeReg {
		// Hard links keep the encoded size but have no body, so the writer does not wait for one.
		hdr.Typeflag = tar.TypeLink
		s.n += byteCounter(size + (-size & (blockSize - 1)))
	}
	if err := s.tw.WriteHeader(hdr); err != nil {
		return err
	}
	return s.tw.Flush()
}

// total closes the sizer and returns the size including the end-of-archive trailer.
func (s *tarSizer) total() (int64, error) {
	if err := s.tw.Close(); err != nil {
		return 0, err
	}
	return int64(s.n), nil
}
