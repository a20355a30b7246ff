// Package tracking is the experiment-tracking service sweeps publish their autoencoders to: a
// registry of versioned, aliased artifacts whose files live in a storage.Store.
package tracking

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/apartresearch/reward-analyzer/pkg/artifacts"
)

// ErrNotFound is returned when an artifact, version or alias does not exist.
var ErrNotFound = errors.New("not found")

// ArtifactVersion is one immutable version of a named artifact.
type ArtifactVersion struct {
	bun.BaseModel `bun:"table:artifact_versions,alias:av"`

	ID         int64                  `bun:"id,pk,autoincrement" json:"id"`
	Entity     string                 `bun:"entity,notnull,unique:artifact_version" json:"entity"`
	Project    string                 `bun:"project,notnull,unique:artifact_version" json:"project"`
	Name       string                 `bun:"name,notnull,unique:artifact_version" json:"name"`
	Version    int                    `bun:"version,notnull,unique:artifact_version" json:"version"`
	Type       string                 `bun:"type,notnull" json:"type"`
	RunID      string                 `bun:"run_id" json:"run_id"`
	RunName    string                 `bun:"run_name" json:"run_name"`
	Metadata   map[string]interface{} `bun:"metadata,type:jsonb" json:"metadata"`
	StorageKey string                 `bun:"storage_key,notnull" json:"storage_key"`
	DirName    string                 `bun:"dir_name" json:"dir_name"`
	CreatedAt  time.Time              `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	// Aliases are filled in on reads.
	Aliases []string `bun:"-" json:"aliases"`
}

// VersionAlias is the immutable alias of a version: "v0", "v1", ...
func (v *ArtifactVersion) VersionAlias() string {
	return fmt.Sprintf("v%d", v.Version)
}

// FullPath addresses exactly this version.
func (v *ArtifactVersion) FullPath() artifacts.FullPath {
	return artifacts.FullPath{
		Entity:  v.Entity,
		Project: v.Project,
		Name:    v.Name,
		Alias:   v.VersionAlias(),
	}
}

func (v *ArtifactVersion) clone() *ArtifactVersion {
	out := *v
	out.Aliases = append([]string(nil), v.Aliases...)
	if v.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(v.Metadata))
		for k, val := range v.Metadata {
			out.Metadata[k] = val
		}
	}
	return &out
}

type artifactAlias struct {
	bun.BaseModel `bun:"table:artifact_aliases,alias:aa"`

	Entity    string `bun:"entity,pk"`
	Project   string `bun:"project,pk"`
	Name      string `bun:"name,pk"`
	Alias     string `bun:"alias,pk"`
	VersionID int64  `bun:"version_id,notnull"`
}

// Registry records artifact versions and the aliases pointing at them.
type Registry interface {
	// CreateVersion stores v as the next version of its artifact, filling in ID, Version and
	// CreatedAt, and moves every alias to it.
	CreateVersion(ctx context.Context, v *ArtifactVersion, aliases []string) error
	// Resolve finds the version an alias points at. "v<N>" always resolves to version N.
	Resolve(ctx context.Context, entity, project, name, alias string) (*ArtifactVersion, error)
	// ListVersions returns every version of an artifact, oldest first.
	ListVersions(ctx context.Context, entity, project, name string) ([]*ArtifactVersion, error)
}

var versionAlias = regexp.MustCompile(`^v(\d+)$`)

func parseVersionAlias(alias string) (int, bool) {
	m := versionAlias.FindStringSubmatch(alias)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func validateAliases(aliases []string) error {
	for _, a := range aliases {
		if a == "" {
			return errors.New("empty alias")
		}
		if _, ok := parseVersionAlias(a); ok {
			return errors.Errorf("alias %q is reserved for version numbers", a)
		}
	}
	return nil
}
