package tracking

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/apartresearch/reward-analyzer/internal/storage"
	"github.com/apartresearch/reward-analyzer/pkg/artifacts"
	"github.com/apartresearch/reward-analyzer/pkg/hparams"
)

const resolveCacheSize = 256

// Service publishes artifacts to a Registry and a storage.Store, and fetches them back.
type Service struct {
	entity       string
	registry     Registry
	store        storage.Store
	downloadRoot string
	resolved     *lru.Cache[string, *ArtifactVersion]
}

// NewService wires a registry to a store. Artifacts are downloaded under downloadRoot.
func NewService(
	entity string, registry Registry, store storage.Store, downloadRoot string,
) (*Service, error) {
	if entity == "" {
		entity = artifacts.DefaultEntity
	}
	cache, err := lru.New[string, *ArtifactVersion](resolveCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		entity:       entity,
		registry:     registry,
		store:        store,
		downloadRoot: downloadRoot,
		resolved:     cache,
	}, nil
}

// Entity is the namespace artifacts are published under.
func (s *Service) Entity() string {
	return s.entity
}

// Run is one tracked training run. It is safe for concurrent use.
type Run struct {
	ID      uuid.UUID
	Name    string
	Project string
	Config  *hparams.Hyperparameters

	svc    *Service
	mu     sync.Mutex
	logged []*ArtifactVersion
}

// StartRun starts a run in project, recording its hyperparameters.
func (s *Service) StartRun(project string, config *hparams.Hyperparameters) *Run {
	r := &Run{
		ID:      uuid.New(),
		Name:    petname.Generate(2, "-"),
		Project: project,
		Config:  config.Copy(),
		svc:     s,
	}
	log.WithFields(log.Fields{
		"run-id":  r.ID,
		"run":     r.Name,
		"project": project,
	}).Info("started run")
	return r
}

// LogArtifact uploads a.Dir and records it as the next version of the artifact, moving aliases
// onto it. Artifacts without a project are logged to the run's project.
func (r *Run) LogArtifact(ctx context.Context, a *artifacts.Artifact, aliases []string) error {
	project := a.Project
	if project == "" {
		project = r.Project
	}
	if a.Name == "" {
		return errors.New("artifact has no name")
	}
	if _, err := os.Stat(a.Dir); err != nil {
		return errors.Wrapf(err, "artifact %s", a.Name)
	}

	key := path.Join(r.svc.entity, project, a.Name, uuid.NewString())
	if err := r.svc.store.Upload(ctx, key, a.Dir); err != nil {
		return errors.Wrapf(err, "uploading artifact %s", a.Name)
	}

	v := &ArtifactVersion{
		Entity:     r.svc.entity,
		Project:    project,
		Name:       a.Name,
		Type:       a.Type,
		RunID:      r.ID.String(),
		RunName:    r.Name,
		Metadata:   a.Metadata,
		StorageKey: key,
		DirName:    a.DirName,
	}
	if err := r.svc.registry.CreateVersion(ctx, v, aliases); err != nil {
		if dErr := r.svc.store.Delete(ctx, key); dErr != nil {
			log.WithError(dErr).Warnf("failed to clean up upload %s", key)
		}
		return err
	}
	r.svc.forget(v.Entity, v.Project, v.Name)

	r.mu.Lock()
	r.logged = append(r.logged, v)
	r.mu.Unlock()

	log.WithFields(log.Fields{
		"run":      r.Name,
		"artifact": v.FullPath().String(),
		"aliases":  v.Aliases,
	}).Info("logged artifact")
	return nil
}

// Artifacts returns the versions logged by the run so far.
func (r *Run) Artifacts() []*ArtifactVersion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*ArtifactVersion(nil), r.logged...)
}

// Artifact resolves a full path to a version. An empty entity means the service's entity.
func (s *Service) Artifact(ctx context.Context, p artifacts.FullPath) (*ArtifactVersion, error) {
	if p.Entity == "" {
		p.Entity = s.entity
	}
	if p.Alias == "" {
		p.Alias = artifacts.LatestAlias
	}
	if v, ok := s.resolved.Get(p.String()); ok {
		return v.clone(), nil
	}
	v, err := s.registry.Resolve(ctx, p.Entity, p.Project, p.Name, p.Alias)
	if err != nil {
		return nil, err
	}
	s.resolved.Add(p.String(), v.clone())
	return v, nil
}

// forget drops every cached resolution of an artifact. A new version can move aliases off any
// older version, so entries cached under version aliases go stale too.
func (s *Service) forget(entity, project, name string) {
	prefix := artifacts.FullPath{Entity: entity, Project: project, Name: name}.String()
	for _, key := range s.resolved.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.resolved.Remove(key)
		}
	}
}

// Versions lists every version of an artifact in the service's entity.
func (s *Service) Versions(ctx context.Context, project, name string) ([]*ArtifactVersion, error) {
	return s.registry.ListVersions(ctx, s.entity, project, name)
}

// Download unpacks v into dest/<DirName>. An empty dest selects a directory under the download
// root. It returns dest.
func (s *Service) Download(ctx context.Context, v *ArtifactVersion, dest string) (string, error) {
	if dest == "" {
		dest = filepath.Join(s.downloadRoot, v.Entity, v.Project,
			fmt.Sprintf("%s_%s", v.Name, v.VersionAlias()))
	}
	target := filepath.Join(dest, v.DirName)
	if err := os.RemoveAll(target); err != nil {
		return "", err
	}
	if err := s.store.Download(ctx, v.StorageKey, target); err != nil {
		return "", errors.Wrapf(err, "downloading %s", v.FullPath())
	}
	return dest, nil
}

// FetchArtifact resolves and downloads an artifact, implementing artifacts.Fetcher.
func (s *Service) FetchArtifact(ctx context.Context, p artifacts.FullPath) (string, error) {
	v, err := s.Artifact(ctx, p)
	if err != nil {
		return "", err
	}
	return s.Download(ctx, v, "")
}
