package tracking

import (
	"context"
	"database/sql"
	"sort"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// PgRegistry is a Registry backed by Postgres.
type PgRegistry struct {
	db *bun.DB
}

// NewPgRegistry wraps an open database. Call Migrate before first use.
func NewPgRegistry(db *bun.DB) *PgRegistry {
	return &PgRegistry{db: db}
}

// Close closes the underlying database.
func (r *PgRegistry) Close() error {
	return r.db.Close()
}

// Migrate creates the registry's tables if they do not exist yet.
func (r *PgRegistry) Migrate(ctx context.Context) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().Model((*ArtifactVersion)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return errors.Wrap(err, "creating artifact_versions")
		}
		if _, err := tx.NewCreateTable().Model((*artifactAlias)(nil)).
			IfNotExists().
			ForeignKey(`("version_id") REFERENCES "artifact_versions" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return errors.Wrap(err, "creating artifact_aliases")
		}
		return nil
	})
}

// CreateVersion implements Registry.
func (r *PgRegistry) CreateVersion(ctx context.Context, v *ArtifactVersion, aliases []string) error {
	if err := validateAliases(aliases); err != nil {
		return err
	}
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Serialize version numbering per artifact.
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))",
			v.Entity+"/"+v.Project+"/"+v.Name).Exec(ctx); err != nil {
			return err
		}

		var next int
		if err := tx.NewSelect().
			Model((*ArtifactVersion)(nil)).
			ColumnExpr("COALESCE(MAX(version) + 1, 0)").
			Where("entity = ? AND project = ? AND name = ?", v.Entity, v.Project, v.Name).
			Scan(ctx, &next); err != nil {
			return err
		}
		v.Version = next

		if _, err := tx.NewInsert().Model(v).Returning("id, created_at").Exec(ctx); err != nil {
			return err
		}

		for _, a := range aliases {
			alias := &artifactAlias{
				Entity: v.Entity, Project: v.Project, Name: v.Name, Alias: a, VersionID: v.ID,
			}
			if _, err := tx.NewInsert().Model(alias).
				On("CONFLICT (entity, project, name, alias) DO UPDATE").
				Set("version_id = EXCLUDED.version_id").
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(matchSentinelError(err),
			"creating version of %s/%s/%s", v.Entity, v.Project, v.Name)
	}
	v.Aliases = append([]string(nil), aliases...)
	sort.Strings(v.Aliases)
	return nil
}

// Resolve implements Registry.
func (r *PgRegistry) Resolve(
	ctx context.Context, entity, project, name, alias string,
) (*ArtifactVersion, error) {
	v := &ArtifactVersion{}
	q := r.db.NewSelect().Model(v).
		Where("av.entity = ? AND av.project = ? AND av.name = ?", entity, project, name)
	if n, ok := parseVersionAlias(alias); ok {
		q = q.Where("av.version = ?", n)
	} else {
		q = q.Join("JOIN artifact_aliases AS aa ON aa.version_id = av.id").
			Where("aa.alias = ?", alias)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, errors.Wrapf(matchSentinelError(err),
			"artifact %s/%s/%s:%s", entity, project, name, alias)
	}
	if err := r.loadAliases(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ListVersions implements Registry.
func (r *PgRegistry) ListVersions(
	ctx context.Context, entity, project, name string,
) ([]*ArtifactVersion, error) {
	var vs []*ArtifactVersion
	if err := r.db.NewSelect().Model(&vs).
		Where("entity = ? AND project = ? AND name = ?", entity, project, name).
		Order("version ASC").
		Scan(ctx); err != nil {
		return nil, errors.Wrapf(matchSentinelError(err),
			"listing versions of %s/%s/%s", entity, project, name)
	}
	for _, v := range vs {
		if err := r.loadAliases(ctx, v); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

func (r *PgRegistry) loadAliases(ctx context.Context, v *ArtifactVersion) error {
	var aliases []string
	if err := r.db.NewSelect().
		Model((*artifactAlias)(nil)).
		Column("alias").
		Where("version_id = ?", v.ID).
		Order("alias ASC").
		Scan(ctx, &aliases); err != nil {
		return errors.Wrapf(err, "loading aliases of version %d", v.ID)
	}
	v.Aliases = aliases
	return nil
}
