// Package archive packs artifact directories into tar, gzipped tar or zip streams and unpacks
// them again.
package archive

import (
	"compress/gzip"
	"io"

	"github.com/pkg/errors"
)

// Type is an archive format.
type Type string

const (
	// Tar is a tar ball.
	Tar Type = "tar"
	// Tgz is a gzipped tar ball.
	Tgz Type = "tgz"
	// Zip is a zip file.
	Zip Type = "zip"
)

// Writer creates an archive one file at a time: WriteHeader, then exactly size bytes of Write.
type Writer interface {
	WriteHeader(path string, size int64) error
	Write(b []byte) (int, error)
	Close() error
}

// NewWriter returns a Writer for typ that writes to w. Closing it flushes every layer but does not
// close w.
func NewWriter(w io.Writer, typ Type) (Writer, error) {
	var closers []io.Closer
	switch typ {
	case Tar:
		return newTarWriter(w, closers), nil
	case Tgz:
		gz := gzip.NewWriter(w)
		closers = append(closers, gz)
		return newTarWriter(gz, closers), nil
	case Zip:
		return newZipWriter(w, closers), nil
	default:
		return nil, errors.Errorf("archive type must be %s, %s, or %s, got %q", Tar, Tgz, Zip, typ)
	}
}

type closers []io.Closer

// Close closes every layer, innermost first.
func (cs closers) Close() error {
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i].Close(); err != nil {
			return err
		}
	}
	return nil
}
