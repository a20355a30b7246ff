package tracking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

type artifactKey struct {
	entity, project, name string
}

// MemRegistry is a Registry held in memory, for tests and single-process sweeps.
type MemRegistry struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	nextID   int64
	versions map[artifactKey][]*ArtifactVersion
	aliases  map[artifactKey]map[string]int
}

// NewMemRegistry returns an empty in-memory registry. A nil clock uses the real clock.
func NewMemRegistry(clock clockwork.Clock) *MemRegistry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemRegistry{
		clock:    clock,
		nextID:   1,
		versions: map[artifactKey][]*ArtifactVersion{},
		aliases:  map[artifactKey]map[string]int{},
	}
}

// CreateVersion implements Registry.
func (r *MemRegistry) CreateVersion(_ context.Context, v *ArtifactVersion, aliases []string) error {
	if err := validateAliases(aliases); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	k := artifactKey{v.Entity, v.Project, v.Name}
	v.ID = r.nextID
	r.nextID++
	v.Version = len(r.versions[k])
	v.CreatedAt = r.clock.Now().UTC().Truncate(time.Microsecond)
	stored := *v
	stored.Aliases = nil
	r.versions[k] = append(r.versions[k], &stored)

	if r.aliases[k] == nil {
		r.aliases[k] = map[string]int{}
	}
	for _, a := range aliases {
		r.aliases[k][a] = v.Version
	}
	v.Aliases = r.aliasesOf(k, v.Version)
	return nil
}

func (r *MemRegistry) aliasesOf(k artifactKey, version int) []string {
	var out []string
	for a, n := range r.aliases[k] {
		if n == version {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

func (r *MemRegistry) view(k artifactKey, version int) *ArtifactVersion {
	cp := *r.versions[k][version]
	cp.Aliases = r.aliasesOf(k, version)
	return &cp
}

// Resolve implements Registry.
func (r *MemRegistry) Resolve(
	_ context.Context, entity, project, name, alias string,
) (*ArtifactVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := artifactKey{entity, project, name}
	version, ok := parseVersionAlias(alias)
	if !ok {
		version, ok = r.aliases[k][alias]
	}
	if !ok || version >= len(r.versions[k]) {
		return nil, errors.Wrapf(ErrNotFound, "artifact %s/%s/%s:%s", entity, project, name, alias)
	}
	return r.view(k, version), nil
}

// ListVersions implements Registry.
func (r *MemRegistry) ListVersions(
	_ context.Context, entity, project, name string,
) ([]*ArtifactVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := artifactKey{entity, project, name}
	out := make([]*ArtifactVersion, 0, len(r.versions[k]))
	for i := range r.versions[k] {
		out = append(out, r.view(k, i))
	}
	return out, nil
}
