package storage

import (
	"bytes"
	"io"

	"github.com/apartresearch/reward-analyzer/pkg/artifacts/archive"
)

func writeTgz(w io.Writer, dir string) error {
	aw, err := archive.NewWriter(w, archive.Tgz)
	if err != nil {
		return err
	}
	if err := archive.WriteDir(aw, dir); err != nil {
		_ = aw.Close()
		return err
	}
	return aw.Close()
}

func extractTgz(data []byte, dest string) error {
	return archive.Extract(bytes.NewReader(data), archive.Tgz, dest)
}
