package sweep

import (
	"encoding/json"
	"fmt"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/tasks"
)

// DefaultProjectPrefix prefixes the tracking project of an experiment that was not given one.
const DefaultProjectPrefix = "Autoencoder_training"

// Variant is the second axis of a sweep: an RLHF task or a reward function.
type Variant interface {
	Name() string
}

// Experiment fully specifies one run of a sweep: the base model to load, the policy model tuned
// from it, and the hyperparameters of the autoencoder training. It is immutable once built.
type Experiment struct {
	hyperparameters *hparams.Hyperparameters
	baseModelName   string
	policyModelName string
	variant         Variant
	projectName     string
	device          string
}

// ExperimentOption customizes an Experiment at construction.
type ExperimentOption func(*Experiment)

// WithProjectName sets the tracking project. Empty names keep the default.
func WithProjectName(name string) ExperimentOption {
	return func(e *Experiment) {
		if name != "" {
			e.projectName = name
		}
	}
}

// WithDevice pins the experiment to a device, e.g. "cuda:1".
func WithDevice(device string) ExperimentOption {
	return func(e *Experiment) {
		e.device = device
	}
}

// NewExperiment builds an experiment. The hyperparameters are copied; a nil variant means IMDB.
func NewExperiment(
	hp *hparams.Hyperparameters,
	baseModelName string,
	policyModelName string,
	variant Variant,
	opts ...ExperimentOption,
) *Experiment {
	if variant == nil {
		variant = tasks.IMDB
	}
	e := &Experiment{
		hyperparameters: hp.Copy(),
		baseModelName:   baseModelName,
		policyModelName: policyModelName,
		variant:         variant,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.projectName == "" {
		e.projectName = fmt.Sprintf("%s_%s", DefaultProjectPrefix, variant.Name())
	}
	return e
}

// Hyperparameters returns a copy of the merged hyperparameters; changing it does not affect the
// experiment.
func (e *Experiment) Hyperparameters() *hparams.Hyperparameters {
	return e.hyperparameters.Copy()
}

// BaseModelName is the fully-qualified id of the base model, e.g. "eleutherai/pythia-70m".
func (e *Experiment) BaseModelName() string { return e.baseModelName }

// PolicyModelName is the name of the RLHF-tuned model derived from the base model.
func (e *Experiment) PolicyModelName() string { return e.policyModelName }

// Variant is the task or reward function of the experiment.
func (e *Experiment) Variant() Variant { return e.variant }

// ProjectName is the tracking project the experiment's artifacts go to.
func (e *Experiment) ProjectName() string { return e.projectName }

// Device is the requested device, or "" to let the trainer choose.
func (e *Experiment) Device() string { return e.device }

// String renders the hyperparameters together with the base model and the task.
func (e *Experiment) String() string {
	printable := e.hyperparameters.Merge(hparams.FromPairs(
		"base_model_name", e.baseModelName,
		"task_config", e.variant.Name(),
	))
	return printable.String()
}

type experimentJSON struct {
	BaseModelName   string                   `json:"base_model_name"`
	PolicyModelName string                   `json:"policy_model_name"`
	Variant         string                   `json:"variant"`
	ProjectName     string                   `json:"project_name"`
	Device          string                   `json:"device,omitempty"`
	Hyperparameters *hparams.Hyperparameters `json:"hyperparameters"`
}

// MarshalJSON implements the json.Marshaler interface.
func (e *Experiment) MarshalJSON() ([]byte, error) {
	return json.Marshal(experimentJSON{
		BaseModelName:   e.baseModelName,
		PolicyModelName: e.policyModelName,
		Variant:         e.variant.Name(),
		ProjectName:     e.projectName,
		Device:          e.device,
		Hyperparameters: e.hyperparameters,
	})
}
