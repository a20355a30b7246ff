package hparams

import (
	"sort"

	"github.com/pkg/errors"
)

// Well-known option names read by the orchestration code.
const (
	Fast             = "fast"
	TiedWeights      = "tied_weights"
	BatchSize        = "batch_size"
	NumEpochs        = "num_epochs"
	LearningRate     = "learning_rate"
	L1Coef           = "l1_coef"
	Split            = "split"
	MaxInputLength   = "max_input_length"
	HiddenMultiples  = "hidden_size_multiples"
	NumLayersToKeep  = "num_layers_to_keep"
	DivergenceChoice = "divergence_choice"
	GradAccumSteps   = "gradient_accumulation_steps"
)

// Names of the built-in presets.
const (
	FastPreset   = "fast"
	FullPreset   = "full"
	RewardPreset = "reward"
)

// FastSet is the preset for short smoke runs.
func FastSet() *Hyperparameters {
	return FromPairs(
		MaxInputLength, 128,
		HiddenMultiples, []int{1, 2},
		L1Coef, 0.001,
		BatchSize, 32,
		NumEpochs, 1,
		LearningRate, 1e-3,
		Fast, true,
		Split, "test",
		NumLayersToKeep, 5,
		TiedWeights, true,
		DivergenceChoice, "highest_divergence",
	)
}

// FullSet is the preset for complete runs. It only differs from FastSet in its epoch count, input
// truncation and the fast flag.
func FullSet() *Hyperparameters {
	return FastSet().Merge(FromPairs(
		MaxInputLength, 256,
		NumEpochs, 3,
		Fast, false,
	))
}

// RewardSet is the preset used by the reward-function sweeps.
func RewardSet() *Hyperparameters {
	return FromPairs(
		MaxInputLength, 256,
		HiddenMultiples, []int{1, 2},
		L1Coef, 0.001,
		BatchSize, 32,
		NumEpochs, 1,
		LearningRate, 1e-3,
		Fast, false,
		Split, "test",
		NumLayersToKeep, 5,
		TiedWeights, true,
	)
}

var presets = map[string]func() *Hyperparameters{
	FastPreset:   FastSet,
	FullPreset:   FullSet,
	RewardPreset: RewardSet,
}

// Preset returns a fresh copy of the named preset.
func Preset(name string) (*Hyperparameters, error) {
	fn, ok := presets[name]
	if !ok {
		return nil, errors.Errorf("unknown hyperparameter preset %q (expected one of %v)",
			name, PresetNames())
	}
	return fn(), nil
}

// PresetNames lists the built-in preset names.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
