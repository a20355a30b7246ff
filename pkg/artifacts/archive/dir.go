package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type walkEntry struct {
	rel  string
	full string
	size int64
	dir  bool
}

func walk(dir string) ([]walkEntry, error) {
	var entries []walkEntry
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			entries = append(entries, walkEntry{rel: rel + "/", full: p, dir: true})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, walkEntry{rel: rel, full: p, size: info.Size()})
		return nil
	})
	return entries, err
}

// WriteDir writes every directory and regular file under dir into w, in lexical order, with paths
// relative to dir. It does not close w.
func WriteDir(w Writer, dir string) error {
	entries, err := walk(dir)
	if err != nil {
		return errors.Wrapf(err, "walking %s", dir)
	}
	for _, e := range entries {
		if err := w.WriteHeader(e.rel, e.size); err != nil {
			return errors.Wrapf(err, "writing header for %s", e.rel)
		}
		if e.dir {
			continue
		}
		if err := copyFile(w, e.full); err != nil {
			return errors.Wrapf(err, "archiving %s", e.rel)
		}
	}
	return nil
}

func copyFile(w io.Writer, p string) error {
	f, err := os.Open(p) // #nosec G304
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// TarSize predicts the size of the tar ball WriteDir would produce for dir, without reading file
// contents.
func TarSize(dir string) (int64, error) {
	entries, err := walk(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "walking %s", dir)
	}
	s := newTarSizer()
	for _, e := range entries {
		if err := s.add(e.rel, e.size); err != nil {
			return 0, errors.Wrapf(err, "sizing %s", e.rel)
		}
	}
	return s.total()
}

// safeJoin resolves name under dest, rejecting entries that would escape it.
func safeJoin(dest, name string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(name))
	if clean == "/" {
		return "", errors.Errorf("invalid archive entry %q", name)
	}
	target := filepath.Join(dest, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", errors.Errorf("archive entry %q escapes %s", name, dest)
	}
	return target, nil
}

func writeFile(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Extract unpacks an archive of the given type into dest, creating it if needed.
func Extract(r io.Reader, typ Type, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dest)
	}
	switch typ {
	case Tar:
		return extractTar(r, dest)
	case Tgz:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return errors.Wrap(err, "opening gzip stream")
		}
		defer gz.Close()
		return extractTar(gz, dest)
	case Zip:
		return extractZip(r, dest)
	default:
		return errors.Errorf("archive type must be %s, %s, or %s, got %q", Tar, Tgz, Zip, typ)
	}
}

func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrap(err, "reading tar entry")
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr); err != nil {
				return errors.Wrapf(err, "extracting %s", hdr.Name)
			}
		}
	}
}

func extractZip(r io.Reader, dest string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading zip archive")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.Wrap(err, "opening zip archive")
	}
	for _, f := range zr.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return errors.Wrapf(err, "opening %s", f.Name)
		}
		err = writeFile(target, rc)
		_ = rc.Close()
		if err != nil {
			return errors.Wrapf(err, "extracting %s", f.Name)
		}
	}
	return nil
}
