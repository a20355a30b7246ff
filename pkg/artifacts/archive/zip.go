package archive

import (
	"archive/zip"
	"io"

	"github.com/pkg/errors"
)

type zipWriter struct {
	closers
	zw      *zip.Writer
	current io.Writer
}

func newZipWriter(w io.Writer, cs closers) *zipWriter {
	zw := zip.NewWriter(w)
	return &zipWriter{closers: append(cs, zw), zw: zw}
}

func (aw *zipWriter) WriteHeader(path string, size int64) error {
	w, err := aw.zw.Create(path)
	if err != nil {
		return err
	}
	aw.current = w
	return nil
}

func (aw *zipWriter) Write(p []byte) (int, error) {
	if aw.current == nil {
		return 0, errors.New("zip write before header")
	}
	return aw.current.Write(p)
}
