// Package pipeline runs experiment grids: the RLHF settings each policy is tuned with, and the
// runner that trains, saves and publishes every experiment of a grid.
package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/sweep"
)

// OrgEnvVar names the environment variable holding the hub organization policies are pushed to.
const OrgEnvVar = "HUGGINGFACE_ORG_NAME"

// RLHFType is the policy optimization algorithm.
type RLHFType string

// PPO is the only algorithm that keeps a frozen reference model next to the policy.
const PPO RLHFType = "ppo"

const (
	// DefaultDataset is the prompt dataset policies are tuned on.
	DefaultDataset = "imdb"
	// DefaultTrainingSteps and DefaultWarmupSteps drive the linear learning rate schedule.
	DefaultTrainingSteps = 20000
	DefaultWarmupSteps   = 10
)

// Hyperparameter keys recorded next to the trainer's own configuration.
const (
	NumTrainingSteps = "num_training_steps"
	NumWarmupSteps   = "num_warmup_steps"
)

// RLHFPipeline describes how one base model is tuned into a policy.
type RLHFPipeline struct {
	ModelName string
	Dataset   string
	Type      RLHFType
	PushToHub bool
	Org       string

	TrainingSteps int
	WarmupSteps   int
	// Config is the trainer configuration the run starts from.
	Config *hparams.Hyperparameters
}

// RLHFOption customizes an RLHFPipeline.
type RLHFOption func(*RLHFPipeline)

// WithDataset selects the prompt dataset.
func WithDataset(name string) RLHFOption {
	return func(p *RLHFPipeline) {
		p.Dataset = name
	}
}

// WithRLHFType selects the optimization algorithm.
func WithRLHFType(t RLHFType) RLHFOption {
	return func(p *RLHFPipeline) {
		p.Type = t
	}
}

// WithPushToHub publishes the tuned policy to the hub organization.
func WithPushToHub(push bool) RLHFOption {
	return func(p *RLHFPipeline) {
		p.PushToHub = push
	}
}

// WithOrg overrides the organization read from the environment.
func WithOrg(org string) RLHFOption {
	return func(p *RLHFPipeline) {
		p.Org = org
	}
}

// WithSteps sets the length of the schedule.
func WithSteps(training, warmup int) RLHFOption {
	return func(p *RLHFPipeline) {
		p.TrainingSteps, p.WarmupSteps = training, warmup
	}
}

// WithConfig sets the trainer configuration.
func WithConfig(hp *hparams.Hyperparameters) RLHFOption {
	return func(p *RLHFPipeline) {
		p.Config = hp.Copy()
	}
}

// NewRLHFPipeline builds the pipeline settings of a base model. Pushing to the hub requires an
// organization, from WithOrg or the HUGGINGFACE_ORG_NAME environment variable.
func NewRLHFPipeline(modelName string, opts ...RLHFOption) (*RLHFPipeline, error) {
	if modelName == "" {
		return nil, errors.New("rlhf pipeline needs a model name")
	}
	p := &RLHFPipeline{
		ModelName:     modelName,
		Dataset:       DefaultDataset,
		Type:          PPO,
		Org:           os.Getenv(OrgEnvVar),
		TrainingSteps: DefaultTrainingSteps,
		WarmupSteps:   DefaultWarmupSteps,
		Config:        hparams.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.PushToHub && p.Org == "" {
		return nil, errors.Errorf(
			"pushing to the hub needs an organization name, set %s", OrgEnvVar)
	}
	if p.WarmupSteps > p.TrainingSteps {
		return nil, errors.Errorf("warmup steps (%d) exceed training steps (%d)",
			p.WarmupSteps, p.TrainingSteps)
	}
	return p, nil
}

// SimplifiedModel is the model name without its namespace.
func (p *RLHFPipeline) SimplifiedModel() string {
	return sweep.SimplifiedModelID(p.ModelName)
}

// TrackerProject is the tracking project the policy's training run logs to.
func (p *RLHFPipeline) TrackerProject() string {
	return fmt.Sprintf("trl_%s_rlhf_training", p.SimplifiedModel())
}

// HubRepo is where the tuned policy is published, or "" when it is not pushed.
func (p *RLHFPipeline) HubRepo() string {
	if !p.PushToHub {
		return ""
	}
	return fmt.Sprintf("%s/%s_%s_reward", p.Org, p.SimplifiedModel(), p.Dataset)
}

// UseAdapters is set for models too large to tune in full.
func (p *RLHFPipeline) UseAdapters() bool {
	return strings.Contains(p.ModelName, "gpt-j")
}

// NeedsReferenceModel reports whether a frozen copy of the base model is loaded.
func (p *RLHFPipeline) NeedsReferenceModel() bool {
	return p.Type == PPO
}

// Hyperparameters is the full record of the run: the trainer configuration plus the schedule.
func (p *RLHFPipeline) Hyperparameters() *hparams.Hyperparameters {
	return p.Config.Merge(hparams.FromPairs(
		NumTrainingSteps, p.TrainingSteps,
		NumWarmupSteps, p.WarmupSteps,
	))
}
