package artifacts

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SaveToFolder writes one file per autoencoder into dir, named after its logical name. dir is
// created if needed.
func SaveToFolder(models map[string]*Autoencoder, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		bs, err := Marshal(models[name])
		if err != nil {
			return errors.Wrapf(err, "encoding %s", name)
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, bs, 0o600); err != nil {
			return errors.Wrapf(err, "writing %s", p)
		}
		log.WithField("path", p).Debugf("saved autoencoder %s", name)
	}
	return nil
}

// LoadFromFolder reads every file in dir, in name order, as an autoencoder keyed by file name.
func LoadFromFolder(dir string) (map[string]*Autoencoder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}
	models := make(map[string]*Autoencoder, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		bs, err := os.ReadFile(p) // #nosec G304
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", p)
		}
		a, err := Unmarshal(bs)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", p)
		}
		models[e.Name()] = a
		log.WithField("path", p).Debugf("loaded autoencoder %s", e.Name())
	}
	return models, nil
}

// SaveBundle writes each group of b into its own subdirectory of dir.
func SaveBundle(b Bundle, dir string) error {
	for _, g := range Groups {
		if err := SaveToFolder(b[g], filepath.Join(dir, string(g))); err != nil {
			return errors.Wrapf(err, "saving %s", g)
		}
	}
	return nil
}

// LoadBundle reads the four group subdirectories of dir.
func LoadBundle(dir string) (Bundle, error) {
	b := Bundle{}
	for _, g := range Groups {
		models, err := LoadFromFolder(filepath.Join(dir, string(g)))
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", g)
		}
		b[g] = models
	}
	return b, nil
}
