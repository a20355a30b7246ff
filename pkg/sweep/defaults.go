package sweep

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/tasks"
)

// Names of the built-in sweep generations.
const (
	AutoencoderTasks = "autoencoder-tasks"
	RewardFunctions  = "reward-functions"
)

// RewardModelOrg is the namespace the reward-function sweep publishes policies under.
const RewardModelOrg = "amirabdullah19852020"

// DefaultModels are the base models of the task sweep.
func DefaultModels() []string {
	return []string{
		"eleutherai/pythia-70m",
		"eleutherai/pythia-160m",
		"eleutherai/gpt-neo-125m",
		"google/gemma-2b-it",
	}
}

// RewardModels are the base models of the reward-function sweep.
func RewardModels() []string {
	return []string{
		"eleutherai/pythia-70m",
		"eleutherai/pythia-160m",
		"eleutherai/pythia-410m",
		"eleutherai/gpt-neo-125m",
		"ybelkada/gpt-j-6b-sharded-bf16",
	}
}

// DefaultModelOverrides returns a fresh copy of the per-model override table.
func DefaultModelOverrides() ModelOverrides {
	return ModelOverrides{
		"pythia-70m":   hparams.New(),
		"pythia-160m":  hparams.New(),
		"pythia-410m":  hparams.New(),
		"gemma-2b-it":  hparams.New(),
		"gpt-neo-125m": hparams.FromPairs(hparams.L1Coef, 0.015),
		"gpt-j-6b-sharded-bf16": hparams.FromPairs(
			hparams.BatchSize, 8,
			hparams.NumEpochs, 1,
			hparams.GradAccumSteps, 4,
		),
	}
}

// DefaultVariantOverrides returns a fresh copy of the per-task override table.
func DefaultVariantOverrides() VariantOverrides {
	bigSplit := func() *hparams.Hyperparameters {
		return hparams.FromPairs(
			hparams.Split, "train",
			hparams.NumEpochs, 1,
			hparams.BatchSize, 64,
		)
	}
	return VariantOverrides{
		tasks.Unaligned: bigSplit(),
		tasks.HHRLHF:    bigSplit(),
		tasks.IMDB:      hparams.New(),
	}
}

var generations = map[string]func(*hparams.Hyperparameters) GridConfig{
	AutoencoderTasks: func(hp *hparams.Hyperparameters) GridConfig {
		if hp == nil {
			hp = hparams.FullSet()
		}
		return GridConfig{
			Hyperparameters:  hp,
			Models:           DefaultModels(),
			Variants:         TaskVariants(tasks.DefaultTasks()...),
			ModelOverrides:   DefaultModelOverrides(),
			VariantOverrides: DefaultVariantOverrides(),
			Namer:            DefaultNamer,
		}
	},
	RewardFunctions: func(hp *hparams.Hyperparameters) GridConfig {
		if hp == nil {
			hp = hparams.RewardSet()
		}
		return GridConfig{
			Hyperparameters: hp,
			Models:          RewardModels(),
			Variants:        RewardVariants(tasks.AllRewardFunctions...),
			ModelOverrides:  DefaultModelOverrides(),
			Namer:           OrgNamer(RewardModelOrg),
			Org:             RewardModelOrg,
		}
	},
}

// Generation returns the grid config of a built-in sweep generation. A nil base set selects the
// generation's own preset: full for the task sweep, reward for the reward-function sweep.
func Generation(name string, hp *hparams.Hyperparameters) (GridConfig, error) {
	fn, ok := generations[name]
	if !ok {
		return GridConfig{}, errors.Errorf("unknown sweep generation %q (expected one of %v)",
			name, GenerationNames())
	}
	return fn(hp), nil
}

// GenerationNames lists the built-in generations.
func GenerationNames() []string {
	names := make([]string, 0, len(generations))
	for name := range generations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FastGrid is the task sweep over the fast preset.
func FastGrid() *Grid {
	cfg, _ := Generation(AutoencoderTasks, hparams.FastSet())
	return Generate(cfg)
}

// FullGrid is the task sweep over the full preset.
func FullGrid() *Grid {
	cfg, _ := Generation(AutoencoderTasks, hparams.FullSet())
	return Generate(cfg)
}
