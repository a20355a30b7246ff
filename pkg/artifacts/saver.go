package artifacts

import (
	"context"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
)

// SaveDirLayout is the time layout of the per-save directory under the save root.
const SaveDirLayout = "2006-01-02_15:04:05"

// Artifact is a directory of files to publish to the tracking service.
type Artifact struct {
	Name     string                 `json:"name"`
	Type     string                 `json:"type"`
	Project  string                 `json:"project,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
	// Dir is the local directory holding the files.
	Dir string `json:"dir"`
	// DirName is the name Dir is published under inside the artifact.
	DirName string `json:"dir_name"`
}

// RunLogger records artifacts against a tracking run.
type RunLogger interface {
	LogArtifact(ctx context.Context, a *Artifact, aliases []string) error
}

// Fetcher downloads a published artifact and returns the local directory it was unpacked into.
type Fetcher interface {
	FetchArtifact(ctx context.Context, path FullPath) (string, error)
}

// Saver writes autoencoder bundles under a save root and publishes them.
type Saver struct {
	root   string
	naming Naming
	clock  clockwork.Clock
}

// NewSaver returns a Saver writing below root. A nil clock uses the real clock.
func NewSaver(root string, naming Naming, clock clockwork.Clock) *Saver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Saver{root: root, naming: naming, clock: clock}
}

// Save writes the bundle to <root>/<timestamp>/<group>/<name>, then logs it to run as an artifact
// named after the policy, with the hyperparameters merged into the metadata. metadata is not
// modified.
func (s *Saver) Save(
	ctx context.Context,
	b Bundle,
	policy string,
	hp *hparams.Hyperparameters,
	alias string,
	run RunLogger,
	metadata map[string]interface{},
) (*Artifact, error) {
	dir := filepath.Join(s.root, s.clock.Now().Format(SaveDirLayout))
	if err := SaveBundle(b, dir); err != nil {
		return nil, err
	}

	merged := make(map[string]interface{}, len(metadata)+hp.Len())
	for k, v := range metadata {
		merged[k] = v
	}
	for k, v := range hp.ToMap() {
		merged[k] = v
	}

	a := &Artifact{
		Name:     ArtifactName(s.naming.ArtifactPrefix, policy),
		Type:     ArtifactType,
		Project:  s.naming.Project(policy),
		Metadata: merged,
		Dir:      dir,
		DirName:  SavesDir,
	}
	aliases := Aliases(policy, hp, alias)
	log.WithFields(log.Fields{
		"artifact": a.Name,
		"dir":      dir,
		"aliases":  aliases,
	}).Info("saving autoencoders")
	if err := run.LogArtifact(ctx, a, aliases); err != nil {
		return nil, errors.Wrapf(err, "logging artifact %s", a.Name)
	}
	return a, nil
}

// Loader fetches published bundles.
type Loader struct {
	naming  Naming
	fetcher Fetcher
}

// NewLoader returns a Loader resolving policy names with naming.
func NewLoader(naming Naming, fetcher Fetcher) *Loader {
	return &Loader{naming: naming, fetcher: fetcher}
}

// Load downloads the autoencoders of a policy at the given alias ("" means latest).
func (l *Loader) Load(ctx context.Context, policy, alias string) (Bundle, error) {
	return l.LoadPath(ctx, l.naming.Path(policy, alias))
}

// LoadPath downloads the autoencoders at an explicit artifact path.
func (l *Loader) LoadPath(ctx context.Context, path FullPath) (Bundle, error) {
	log.WithField("path", path.String()).Info("loading artifact")
	dir, err := l.fetcher.FetchArtifact(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", path)
	}
	return LoadBundle(filepath.Join(dir, SavesDir))
}
