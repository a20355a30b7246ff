package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/apartresearch/reward-analyzer/pkg/check"
	"github.com/apartresearch/reward-analyzer/pkg/ptrs"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func requireTree(t *testing.T, root string, files map[string]string) {
	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		require.Equal(t, content, string(got), name)
	}
}

var testFiles = map[string]string{
	"base_big/layers.2.mlp":   "aaaa",
	"rlhf_small/layers.4.mlp": "bb",
}

func TestConfigJSON(t *testing.T) {
	var c Config
	require.NoError(t, json.Unmarshal(
		[]byte(`{"type": "s3", "bucket": "b", "prefix": "p", "access_key": "AK", "secret_key": "SK"}`), &c))
	require.Equal(t, S3, c.Type())
	require.Equal(t, "b", c.S3.Bucket)
	require.NoError(t, check.Validate(c))

	bs, err := json.Marshal(c.Printable())
	require.NoError(t, err)
	require.JSONEq(t, `{"type": "s3", "bucket": "b", "prefix": "p",
		"access_key": "********", "secret_key": "********"}`, string(bs))
	// Printable does not touch the original.
	require.Equal(t, "SK", *c.S3.SecretKey)

	require.ErrorContains(t, json.Unmarshal([]byte(`{"type": "azure"}`), &c), "unknown storage type")
}

func TestConfigValidate(t *testing.T) {
	assert.NilError(t, check.Validate(DefaultConfig()))
	assert.ErrorContains(t, check.Validate(Config{}), "exactly one storage backend")
	assert.ErrorContains(t, check.Validate(Config{S3: &S3Config{}}), "s3 bucket is required")
	assert.ErrorContains(t,
		check.Validate(Config{S3: &S3Config{Bucket: "b", AccessKey: ptrs.Ptr("k")}}),
		"must be set together")
	assert.ErrorContains(t, check.Validate(Config{GCS: &GCSConfig{}}), "gcs bucket is required")
}

func TestSharedFSStore(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeTree(t, src, testFiles)

	store, err := New(ctx, Config{SharedFS: &SharedFSConfig{HostPath: t.TempDir(), StoragePath: "x"}})
	require.NoError(t, err)
	require.NoError(t, store.Upload(ctx, "ent/proj/name/v0", src))

	dest := t.TempDir()
	require.NoError(t, store.Download(ctx, "ent/proj/name/v0", dest))
	requireTree(t, dest, testFiles)

	require.NoError(t, store.Delete(ctx, "ent/proj/name/v0"))
	require.Error(t, store.Download(ctx, "ent/proj/name/v0", t.TempDir()))
	require.NoError(t, store.Delete(ctx, "ent/proj/name/v0"))

	_, err = cleanKey("/")
	require.Error(t, err)
	key, err := cleanKey("../a//b/")
	require.NoError(t, err)
	require.Equal(t, "a/b", key)
}

// fakeS3 serves path-style PUT, GET and DELETE object requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<Error><Code>NoSuchKey</Code></Error>`))
			return
		}
		start, end := 0, len(body)-1
		if rng := r.Header.Get("Range"); rng != "" {
			if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if end > len(body)-1 {
				end = len(body) - 1
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(body)))
		}
		w.Header().Set("Content-Length", strconv.Itoa(end-start+1))
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusPartialContent)
		}
		_, _ = w.Write(body[start : end+1])
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	store, err := New(ctx, Config{S3: &S3Config{
		Bucket:      "bucket",
		Prefix:      "sweeps/",
		Region:      "us-east-1",
		EndpointURL: server.URL,
		AccessKey:   ptrs.Ptr("AK"),
		SecretKey:   ptrs.Ptr("SK"),
	}})
	require.NoError(t, err)

	src := t.TempDir()
	writeTree(t, src, testFiles)
	require.NoError(t, store.Upload(ctx, "ent/proj/name/v1", src))
	require.Contains(t, fake.objects, "bucket/sweeps/ent/proj/name/v1.tgz")

	dest := t.TempDir()
	require.NoError(t, store.Download(ctx, "ent/proj/name/v1", dest))
	requireTree(t, dest, testFiles)

	require.NoError(t, store.Delete(ctx, "ent/proj/name/v1"))
	require.Empty(t, fake.objects)
	require.Error(t, store.Download(ctx, "ent/proj/name/v1", t.TempDir()))
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, objectName("", "a/b"), "a/b.tgz")
	assert.Equal(t, objectName("p/", "a/b"), "p/a/b.tgz")
	assert.Equal(t, objectName("/p", "a"), "p/a.tgz")
}
