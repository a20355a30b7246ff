package sweepfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/sweep"
)

func loadGrid(t *testing.T, name string) *sweep.Grid {
	f, err := Load(filepath.Join("testdata", name))
	require.NoError(t, err)
	cfg, err := f.GridConfig()
	require.NoError(t, err)
	return sweep.Generate(cfg)
}

func TestLoadYAML(t *testing.T) {
	grid := loadGrid(t, "rewards.yaml")
	assert.DeepEqual(t, grid.Keys(), []sweep.Key{
		{Model: "pythia-70m", Variant: "utility_reward"},
		{Model: "gpt-j-6b-sharded-bf16", Variant: "utility_reward"},
	})

	pythia, _ := grid.Get(sweep.Key{Model: "pythia-70m", Variant: "utility_reward"})
	assert.Equal(t, pythia.PolicyModelName(), "acme/pythia-70m_utility_reward")
	assert.Equal(t, pythia.ProjectName(), "reward_sweep")
	hp := pythia.Hyperparameters()
	assert.Assert(t, hp.Bool(hparams.Fast))
	batch, _ := hp.Int(hparams.BatchSize)
	assert.Equal(t, batch, 16)
	l1, _ := hp.Float(hparams.L1Coef)
	assert.Equal(t, l1, 0.002)

	// The generation's own overrides still apply under the file's.
	gptj, _ := grid.Get(sweep.Key{Model: "gpt-j-6b-sharded-bf16", Variant: "utility_reward"})
	batch, _ = gptj.Hyperparameters().Int(hparams.BatchSize)
	assert.Equal(t, batch, 8)
}

func TestLoadJSON(t *testing.T) {
	grid := loadGrid(t, "tasks.json")
	require.Equal(t, 2, grid.Len())

	imdb, _ := grid.Get(sweep.Key{Model: "pythia-70m", Variant: "IMDB"})
	assert.Equal(t, imdb.PolicyModelName(), "pythia-70m-imdb")
	assert.Equal(t, imdb.Device(), "cuda:1")
	// Inline sets replace the generation's base set and keep their order.
	assert.DeepEqual(t, imdb.Hyperparameters().Keys(),
		[]string{hparams.NumEpochs, hparams.BatchSize, hparams.HiddenMultiples})

	hh, _ := grid.Get(sweep.Key{Model: "pythia-70m", Variant: "HH_RLHF"})
	split, _ := hh.Hyperparameters().StringValue(hparams.Split)
	assert.Equal(t, split, "test")
	epochs, _ := hh.Hyperparameters().Int(hparams.NumEpochs)
	assert.Equal(t, epochs, 1)
}

func TestLoadHCL(t *testing.T) {
	grid := loadGrid(t, "tasks.hcl")
	require.Equal(t, 2, grid.Len())

	neo, ok := grid.Get(sweep.Key{Model: "gpt-neo-125m", Variant: "UNALIGNED"})
	require.True(t, ok)
	hp := neo.Hyperparameters()
	batch, _ := hp.Int(hparams.BatchSize)
	assert.Equal(t, batch, 64)
	epochs, _ := hp.Int(hparams.NumEpochs)
	assert.Equal(t, epochs, 4)
	l1, _ := hp.Float(hparams.L1Coef)
	assert.Equal(t, l1, 0.5)
	multiples, _ := hp.Get(hparams.HiddenMultiples)
	assert.DeepEqual(t, multiples, []interface{}{1, 2})
	assert.Assert(t, hp.Bool(hparams.Fast))
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unknown field":     `{"modles": ["a/b"]}`,
		"wrong shape":       `{"models": "a/b"}`,
		"unknown task":      `{"tasks": ["SUMMARIZE"]}`,
		"unknown override":  `{"task_overrides": {"SUMMARIZE": {}}}`,
		"tasks and rewards": `{"tasks": ["IMDB"], "reward_functions": ["utility_reward"]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON([]byte(doc))
			require.Error(t, err)
		})
	}

	_, err := ParseHCL([]byte(`models = `), "bad.hcl")
	require.ErrorContains(t, err, "failed to parse HCL file")
	_, err = ParseHCL([]byte(`nope = 1`), "bad.hcl")
	require.ErrorContains(t, err, "failed to decode HCL file")
	_, err = Load("testdata/sweep.toml")
	require.ErrorContains(t, err, "unsupported sweep file extension")
}

func TestGridConfigErrors(t *testing.T) {
	f, err := ParseYAML([]byte("hyperparameters: huge\n"))
	require.NoError(t, err)
	_, err = f.GridConfig()
	require.ErrorContains(t, err, "unknown hyperparameter preset")

	f, err = ParseYAML([]byte("preset: everything\n"))
	require.NoError(t, err)
	_, err = f.GridConfig()
	require.ErrorContains(t, err, "unknown sweep generation")

	f, err = ParseYAML([]byte("policy_name_template: '{{ .Nope }}'\n"))
	require.NoError(t, err)
	_, err = f.GridConfig()
	require.ErrorContains(t, err, "policy name template")
}

func TestYAMLKeepsOrder(t *testing.T) {
	f, err := ParseYAML([]byte(`
hyperparameters:
  num_epochs: 2
  batch_size: 32
  l1_coef: 0.01
hyperparameter_overrides:
  split: test
  fast: true
models: [eleutherai/pythia-70m, eleutherai/gpt-neo-125m]
tasks: [IMDB]
model_overrides:
  gpt-neo-125m:
    tied_weights: true
    batch_size: 8
task_overrides:
  IMDB:
    num_epochs: 1
    learning_rate: 0.001
`))
	require.NoError(t, err)
	assert.DeepEqual(t, f.Hyperparameters.Inline.Keys(),
		[]string{hparams.NumEpochs, hparams.BatchSize, hparams.L1Coef})
	assert.DeepEqual(t, f.HyperparameterOverrides.Keys(), []string{hparams.Split, hparams.Fast})
	assert.DeepEqual(t, f.ModelOverrides["gpt-neo-125m"].Keys(),
		[]string{hparams.TiedWeights, hparams.BatchSize})
	assert.DeepEqual(t, f.TaskOverrides["IMDB"].Keys(), []string{hparams.NumEpochs, "learning_rate"})

	cfg, err := f.GridConfig()
	require.NoError(t, err)
	neo, ok := sweep.Generate(cfg).Get(sweep.Key{Model: "gpt-neo-125m", Variant: "IMDB"})
	require.True(t, ok)
	assert.DeepEqual(t, neo.Hyperparameters().Keys(), []string{
		hparams.NumEpochs, hparams.BatchSize, hparams.L1Coef, hparams.Split, hparams.Fast,
		hparams.TiedWeights, "learning_rate",
	})
	epochs, _ := neo.Hyperparameters().Int(hparams.NumEpochs)
	assert.Equal(t, epochs, 1)
	batch, _ := neo.Hyperparameters().Int(hparams.BatchSize)
	assert.Equal(t, batch, 8)
}

func TestYAMLAnchorsAndErrors(t *testing.T) {
	f, err := ParseYAML([]byte(`
hyperparameter_overrides: &common
  batch_size: 4
model_overrides:
  pythia-70m: *common
`))
	require.NoError(t, err)
	batch, _ := f.ModelOverrides["pythia-70m"].Int(hparams.BatchSize)
	assert.Equal(t, batch, 4)

	_, err = ParseYAML([]byte("models: [a/b\n"))
	require.Error(t, err)
	_, err = ParseYAML([]byte("modles: [a/b]\n"))
	require.ErrorContains(t, err, "invalid sweep file")
}
