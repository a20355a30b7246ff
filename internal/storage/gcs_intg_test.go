//go:build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Needs a GCS emulator (e.g. fake-gcs-server) with a "test" bucket; set STORAGE_EMULATOR_HOST.
func TestGCSStore(t *testing.T) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	store, err := New(ctx, Config{GCS: &GCSConfig{Bucket: "test", Prefix: "intg"}})
	require.NoError(t, err)

	src := t.TempDir()
	writeTree(t, src, testFiles)
	require.NoError(t, store.Upload(ctx, "ent/proj/name/v0", src))

	dest := t.TempDir()
	require.NoError(t, store.Download(ctx, "ent/proj/name/v0", dest))
	requireTree(t, dest, testFiles)

	require.NoError(t, store.Delete(ctx, "ent/proj/name/v0"))
	require.NoError(t, store.Delete(ctx, "ent/proj/name/v0"))
}
