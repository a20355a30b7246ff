package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gotest.tools/assert"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
)

func testAutoencoder(scale float32) *Autoencoder {
	return &Autoencoder{
		Kwargs: Kwargs{InputSize: 2, HiddenSize: 4, L1Coef: 0.001, TiedWeights: true},
		State: map[string]Tensor{
			"encoder.weight": {Shape: []int{4, 2}, Data: []float32{1, 2, 3, 4, 5, 6, 7, scale}},
			"encoder.bias":   {Shape: []int{4}, Data: []float32{0, 0, 0, scale}},
		},
	}
}

func testBundle() Bundle {
	b := Bundle{}
	for i, g := range Groups {
		b[g] = map[string]*Autoencoder{
			"layers.2.mlp": testAutoencoder(float32(i)),
			"layers.4.mlp": testAutoencoder(float32(i) + 0.5),
		}
	}
	return b
}

func TestCodecRoundTrip(t *testing.T) {
	a := testAutoencoder(9)
	bs, err := Marshal(a)
	require.NoError(t, err)
	out, err := Unmarshal(bs)
	require.NoError(t, err)
	if diff := cmp.Diff(a, out); diff != "" {
		t.Fatalf("unexpected diff (-want +got):\n%s", diff)
	}
}

func TestCodecRejectsBadTensors(t *testing.T) {
	a := testAutoencoder(1)
	a.State["broken"] = Tensor{Shape: []int{3}, Data: []float32{1}}
	_, err := Marshal(a)
	require.ErrorContains(t, err, "tensor broken")

	bs, err := msgpack.Marshal([]interface{}{a.Kwargs, a.State})
	require.NoError(t, err)
	_, err = Unmarshal(bs)
	require.ErrorContains(t, err, "tensor broken")
}

func TestFolderRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "base_big")
	models := testBundle()[BaseBig]
	require.NoError(t, SaveToFolder(models, dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, len(entries), 2)

	loaded, err := LoadFromFolder(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(models, loaded); diff != "" {
		t.Fatalf("unexpected diff (-want +got):\n%s", diff)
	}
}

func TestNaming(t *testing.T) {
	assert.Equal(t, SimplifiedPolicyName("org/pythia-70m_utility_reward"), "pythia_70m_utility_reward")
	assert.Equal(t, ArtifactName("autoencoders", "gpt-neo-125m_IMDB"), "autoencoders_gpt_neo_125m_IMDB")

	p := DefaultNaming().Path("pythia-70m_IMDB", "")
	assert.Equal(t, p.String(),
		"nlp_and_interpretability/Autoencoder_training_pythia-70m_IMDB/autoencoders_pythia_70m_IMDB:latest")
}

func TestAliases(t *testing.T) {
	fast := hparams.FromPairs(hparams.Fast, true, hparams.TiedWeights, true)
	assert.DeepEqual(t, Aliases("pythia-70m_IMDB", fast, "v2"),
		[]string{"fast_pythia_70m_IMDB", "latest", "v2", "weights_tied"})

	full := hparams.FromPairs(hparams.Fast, false)
	assert.DeepEqual(t, Aliases("org/gpt-neo-125m_HH_RLHF", full, ""),
		[]string{"gpt_neo_125m_HH_RLHF", "latest"})

	// Duplicates collapse.
	assert.DeepEqual(t, Aliases("m_IMDB", full, "latest"), []string{"latest", "m_IMDB"})
}

func TestParseFullPath(t *testing.T) {
	p, err := ParseFullPath("ent/Autoencoder_training_org/pythia-70m_IMDB/autoencoders_pythia_70m_IMDB:v3")
	require.NoError(t, err)
	require.Equal(t, FullPath{
		Entity:  "ent",
		Project: "Autoencoder_training_org/pythia-70m_IMDB",
		Name:    "autoencoders_pythia_70m_IMDB",
		Alias:   "v3",
	}, p)
	require.Equal(t, "ent/Autoencoder_training_org/pythia-70m_IMDB/autoencoders_pythia_70m_IMDB:v3",
		p.String())

	p, err = ParseFullPath("ent/proj/name")
	require.NoError(t, err)
	require.Equal(t, LatestAlias, p.Alias)

	for _, bad := range []string{"", "name", "ent/name", "/proj/name", "ent/proj/", "ent/proj/name:"} {
		_, err := ParseFullPath(bad)
		require.Error(t, err, bad)
	}
}

type recordingRun struct {
	artifact *Artifact
	aliases  []string
}

func (r *recordingRun) LogArtifact(_ context.Context, a *Artifact, aliases []string) error {
	r.artifact, r.aliases = a, aliases
	return nil
}

type dirFetcher struct {
	dirs map[string]string
}

func (f dirFetcher) FetchArtifact(_ context.Context, p FullPath) (string, error) {
	dir, ok := f.dirs[p.String()]
	if !ok {
		return "", os.ErrNotExist
	}
	return dir, nil
}

func TestSaveAndLoad(t *testing.T) {
	root := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC))
	saver := NewSaver(root, DefaultNaming(), clock)
	run := &recordingRun{}
	hp := hparams.FastSet()
	meta := map[string]interface{}{"layer_names": []string{"layers.2.mlp"}}

	a, err := saver.Save(context.Background(), testBundle(), "pythia-70m_IMDB", hp, "", run, meta)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "2024-03-01_12:30:05"), a.Dir)
	require.Equal(t, "autoencoders_pythia_70m_IMDB", a.Name)
	require.Equal(t, "Autoencoder_training_pythia-70m_IMDB", a.Project)
	require.Equal(t, ArtifactType, a.Type)
	require.Equal(t, true, a.Metadata[hparams.Fast])
	require.Contains(t, a.Metadata, "layer_names")
	require.NotContains(t, meta, hparams.Fast)
	require.Equal(t, []string{"fast_pythia_70m_IMDB", "latest", "weights_tied"}, run.aliases)
	require.Same(t, a, run.artifact)

	// Publish the save dir the way the tracking service would: under its DirName.
	published := t.TempDir()
	require.NoError(t, os.Rename(a.Dir, filepath.Join(published, a.DirName)))

	loader := NewLoader(DefaultNaming(), dirFetcher{dirs: map[string]string{
		DefaultNaming().Path("pythia-70m_IMDB", "latest").String(): published,
	}})
	b, err := loader.Load(context.Background(), "pythia-70m_IMDB", "")
	require.NoError(t, err)
	if diff := cmp.Diff(testBundle(), b); diff != "" {
		t.Fatalf("unexpected diff (-want +got):\n%s", diff)
	}

	_, err = loader.Load(context.Background(), "pythia-70m_IMDB", "v9")
	require.ErrorContains(t, err, "fetching")
}

func TestParseGroup(t *testing.T) {
	g, err := ParseGroup("rlhf_small")
	require.NoError(t, err)
	require.Equal(t, RLHFSmall, g)
	_, err = ParseGroup("rlhf_medium")
	require.Error(t, err)
	require.Equal(t, 8, testBundle().Len())
}
