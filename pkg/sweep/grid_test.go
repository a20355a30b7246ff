package sweep

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/tasks"
)

func generateModels(n int) []string {
	models := make([]string, 0, n)
	for i := 0; i < n; i++ {
		models = append(models, fmt.Sprintf("org/model-%d", i))
	}
	return models
}

func checkGrid(t *testing.T, numModels int, variants []Variant) {
	grid := Generate(GridConfig{
		Hyperparameters: hparams.FromPairs(hparams.BatchSize, 32),
		Models:          generateModels(numModels),
		Variants:        variants,
	})
	assert.Equal(t, grid.Len(), numModels*len(variants))
}

func TestGridCount(t *testing.T) {
	checkGrid(t, 1, TaskVariants(tasks.IMDB))
	checkGrid(t, 4, TaskVariants(tasks.IMDB))
	checkGrid(t, 3, TaskVariants(tasks.AllTasks...))
	checkGrid(t, 5, RewardVariants(tasks.AllRewardFunctions...))
	checkGrid(t, 0, TaskVariants(tasks.AllTasks...))
}

func TestGridDefaultVariants(t *testing.T) {
	grid := Generate(GridConfig{Models: []string{"eleutherai/pythia-70m"}})
	assert.DeepEqual(t, grid.Keys(), []Key{
		{Model: "pythia-70m", Variant: "UNALIGNED"},
		{Model: "pythia-70m", Variant: "IMDB"},
		{Model: "pythia-70m", Variant: "HH_RLHF"},
	})
}

func TestGridOrder(t *testing.T) {
	grid := Generate(GridConfig{
		Hyperparameters: hparams.FastSet(),
		Models:          []string{"a/m1", "b/m2"},
		Variants:        TaskVariants(tasks.IMDB, tasks.HHRLHF),
	})
	assert.DeepEqual(t, grid.Keys(), []Key{
		{Model: "m1", Variant: "IMDB"},
		{Model: "m1", Variant: "HH_RLHF"},
		{Model: "m2", Variant: "IMDB"},
		{Model: "m2", Variant: "HH_RLHF"},
	})
	var policies []string
	for _, e := range grid.Experiments() {
		policies = append(policies, e.PolicyModelName())
	}
	assert.DeepEqual(t, policies, []string{"m1_IMDB", "m1_HH_RLHF", "m2_IMDB", "m2_HH_RLHF"})
}

func TestGridExample(t *testing.T) {
	base := hparams.FromPairs(hparams.BatchSize, 32, hparams.NumEpochs, 3)
	grid := Generate(GridConfig{
		Hyperparameters: base,
		Models:          []string{"eleutherai/pythia-70m", "eleutherai/gpt-neo-125m"},
		Variants:        TaskVariants(tasks.IMDB),
		ModelOverrides: ModelOverrides{
			"gpt-neo-125m": hparams.FromPairs(hparams.L1Coef, 0.015),
		},
	})
	require.Equal(t, 2, grid.Len())

	pythia, ok := grid.Get(Key{Model: "pythia-70m", Variant: "IMDB"})
	require.True(t, ok)
	require.True(t, pythia.Hyperparameters().Equal(
		hparams.FromPairs(hparams.BatchSize, 32, hparams.NumEpochs, 3)))
	require.Equal(t, "eleutherai/pythia-70m", pythia.BaseModelName())
	require.Equal(t, "pythia-70m_IMDB", pythia.PolicyModelName())
	require.Equal(t, tasks.IMDB, pythia.Variant())
	require.Equal(t, "Autoencoder_training_IMDB", pythia.ProjectName())

	neo, ok := grid.Get(Key{Model: "gpt-neo-125m", Variant: "IMDB"})
	require.True(t, ok)
	require.True(t, neo.Hyperparameters().Equal(
		hparams.FromPairs(hparams.BatchSize, 32, hparams.NumEpochs, 3, hparams.L1Coef, 0.015)))
}

func TestGridPrecedence(t *testing.T) {
	grid := Generate(GridConfig{
		Hyperparameters: hparams.FromPairs(hparams.NumEpochs, 3, hparams.BatchSize, 32),
		Models:          []string{"eleutherai/gpt-neo-125m"},
		Variants:        TaskVariants(tasks.Unaligned, tasks.IMDB),
		ModelOverrides: ModelOverrides{
			"gpt-neo-125m": hparams.FromPairs(hparams.NumEpochs, 2, hparams.BatchSize, 16),
		},
		VariantOverrides: VariantOverrides{
			tasks.Unaligned: hparams.FromPairs(hparams.NumEpochs, 1),
		},
	})

	unaligned, _ := grid.Get(Key{Model: "gpt-neo-125m", Variant: "UNALIGNED"})
	epochs, _ := unaligned.Hyperparameters().Int(hparams.NumEpochs)
	assert.Equal(t, epochs, 1)
	batch, _ := unaligned.Hyperparameters().Int(hparams.BatchSize)
	assert.Equal(t, batch, 16)

	imdb, _ := grid.Get(Key{Model: "gpt-neo-125m", Variant: "IMDB"})
	epochs, _ = imdb.Hyperparameters().Int(hparams.NumEpochs)
	assert.Equal(t, epochs, 2)
}

func TestGridIndependence(t *testing.T) {
	base := hparams.FromPairs(hparams.HiddenMultiples, []interface{}{1, 2}, hparams.BatchSize, 32)
	grid := Generate(GridConfig{
		Hyperparameters: base,
		Models:          []string{"a/m1", "a/m2"},
		Variants:        TaskVariants(tasks.IMDB),
	})

	// Mutating one descriptor's hyperparameters leaves the others and the base alone.
	first, _ := grid.Get(Key{Model: "m1", Variant: "IMDB"})
	hp := first.Hyperparameters()
	hp.Set(hparams.BatchSize, 1)
	multiples, _ := hp.Get(hparams.HiddenMultiples)
	multiples.([]interface{})[0] = 100

	for _, e := range grid.Experiments() {
		require.True(t, e.Hyperparameters().Equal(base), "got %s", e)
	}
	require.True(t, base.Equal(
		hparams.FromPairs(hparams.HiddenMultiples, []interface{}{1, 2}, hparams.BatchSize, 32)))
}

func TestGridDoesNotMutateInputs(t *testing.T) {
	cfg, err := Generation(AutoencoderTasks, hparams.FastSet())
	require.NoError(t, err)
	overrides := DefaultModelOverrides()
	cfg.ModelOverrides = overrides
	Generate(cfg)

	require.True(t, cfg.Hyperparameters.Equal(hparams.FastSet()))
	for name, o := range DefaultModelOverrides() {
		require.True(t, overrides[name].Equal(o), name)
	}
}

func TestGridIdempotent(t *testing.T) {
	cfg, err := Generation(AutoencoderTasks, nil)
	require.NoError(t, err)
	first, second := Generate(cfg), Generate(cfg)
	require.Equal(t, first.Keys(), second.Keys())
	first.Each(func(k Key, e *Experiment) {
		other, ok := second.Get(k)
		require.True(t, ok)
		require.Equal(t, e.String(), other.String())
		require.Equal(t, e.PolicyModelName(), other.PolicyModelName())
	})
}

func TestGridConcurrentGenerate(t *testing.T) {
	cfg, err := Generation(RewardFunctions, nil)
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Check(t, Generate(cfg).Len() == 10)
		}()
	}
	wg.Wait()
}

func TestGridPermissive(t *testing.T) {
	grid := Generate(GridConfig{
		Hyperparameters: hparams.FromPairs(hparams.BatchSize, 32),
		Models:          []string{"standalone-model", "x/standalone-model"},
		Variants:        TaskVariants(tasks.IMDB),
		ModelOverrides:  ModelOverrides{"not-a-candidate": hparams.FromPairs("x", 1)},
	})
	// The duplicate simplified id replaces the first entry.
	require.Equal(t, 1, grid.Len())
	e, ok := grid.Get(Key{Model: "standalone-model", Variant: "IMDB"})
	require.True(t, ok)
	require.Equal(t, "x/standalone-model", e.BaseModelName())
	require.False(t, e.Hyperparameters().Has("x"))
}

func TestSimplifiedModelID(t *testing.T) {
	assert.Equal(t, SimplifiedModelID("eleutherai/pythia-70m"), "pythia-70m")
	assert.Equal(t, SimplifiedModelID("standalone-model"), "standalone-model")
	assert.Equal(t, SimplifiedModelID("a/b/c"), "c")
}

func TestGenerations(t *testing.T) {
	tasksCfg, err := Generation(AutoencoderTasks, nil)
	require.NoError(t, err)
	grid := Generate(tasksCfg)
	require.Equal(t, 12, grid.Len())

	neo, ok := grid.Get(Key{Model: "gpt-neo-125m", Variant: "HH_RLHF"})
	require.True(t, ok)
	hp := neo.Hyperparameters()
	l1, _ := hp.Float(hparams.L1Coef)
	require.Equal(t, 0.015, l1)
	split, _ := hp.StringValue(hparams.Split)
	require.Equal(t, "train", split)
	batch, _ := hp.Int(hparams.BatchSize)
	require.Equal(t, 64, batch)

	rewardCfg, err := Generation(RewardFunctions, nil)
	require.NoError(t, err)
	rewards := Generate(rewardCfg)
	require.Equal(t, 10, rewards.Len())
	gptj, ok := rewards.Get(Key{Model: "gpt-j-6b-sharded-bf16", Variant: "utility_reward"})
	require.True(t, ok)
	require.Equal(t,
		"amirabdullah19852020/gpt-j-6b-sharded-bf16_utility_reward", gptj.PolicyModelName())
	batch, _ = gptj.Hyperparameters().Int(hparams.BatchSize)
	require.Equal(t, 8, batch)

	_, err = Generation("nope", nil)
	require.ErrorContains(t, err, "unknown sweep generation")
}

func TestFastAndFullGrids(t *testing.T) {
	fast, full := FastGrid(), FullGrid()
	require.Equal(t, fast.Keys(), full.Keys())
	for _, e := range fast.Experiments() {
		require.True(t, e.Hyperparameters().Bool(hparams.Fast))
	}
	for _, e := range full.Experiments() {
		require.False(t, e.Hyperparameters().Bool(hparams.Fast))
	}
}

func TestGridJSON(t *testing.T) {
	grid := Generate(GridConfig{
		Hyperparameters: hparams.FromPairs(hparams.BatchSize, 32),
		Models:          []string{"eleutherai/pythia-70m"},
		Variants:        TaskVariants(tasks.IMDB),
		Device:          "cuda:0",
	})
	bs, err := json.Marshal(grid)
	require.NoError(t, err)
	require.JSONEq(t, `[{
		"model": "pythia-70m",
		"variant": "IMDB",
		"experiment": {
			"base_model_name": "eleutherai/pythia-70m",
			"policy_model_name": "pythia-70m_IMDB",
			"variant": "IMDB",
			"project_name": "Autoencoder_training_IMDB",
			"device": "cuda:0",
			"hyperparameters": {"batch_size": 32}
		}
	}]`, string(bs))
}
