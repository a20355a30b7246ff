//go:build integration
// +build integration

package tracking

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const testPostgresEnv = "RA_INTEGRATION_POSTGRES_URL"

func resolveTestPostgres(t *testing.T) *bun.DB {
	url := os.Getenv(testPostgresEnv)
	if url == "" {
		t.Skipf("%s not set", testPostgresEnv)
	}
	db, err := ConnectURL(context.Background(), url)
	require.NoError(t, err)
	return db
}

func TestPgRegistry(t *testing.T) {
	ctx := context.Background()
	db := resolveTestPostgres(t)
	r := NewPgRegistry(db)
	require.NoError(t, r.Migrate(ctx))
	require.NoError(t, r.Migrate(ctx))
	defer func() {
		_, err := db.NewRaw("TRUNCATE artifact_versions CASCADE").Exec(ctx)
		require.NoError(t, err)
		require.NoError(t, r.Close())
	}()

	first := newVersion("a")
	first.Metadata = map[string]interface{}{"batch_size": 32.0}
	require.NoError(t, r.CreateVersion(ctx, first, []string{"latest", "pythia"}))
	require.Equal(t, 0, first.Version)
	require.NotZero(t, first.ID)
	require.False(t, first.CreatedAt.IsZero())

	second := newVersion("a")
	require.NoError(t, r.CreateVersion(ctx, second, []string{"latest"}))
	require.Equal(t, 1, second.Version)

	latest, err := r.Resolve(ctx, "ent", "proj", "a", "latest")
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)
	require.Equal(t, []string{"latest"}, latest.Aliases)

	old, err := r.Resolve(ctx, "ent", "proj", "a", "v0")
	require.NoError(t, err)
	require.Equal(t, []string{"pythia"}, old.Aliases)
	require.Equal(t, 32.0, old.Metadata["batch_size"])

	vs, err := r.ListVersions(ctx, "ent", "proj", "a")
	require.NoError(t, err)
	require.Len(t, vs, 2)

	_, err = r.Resolve(ctx, "ent", "proj", "a", "nope")
	require.True(t, errors.Is(err, ErrNotFound), err)
}
