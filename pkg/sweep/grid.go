// Package sweep expands a base hyperparameter set, a list of base models and a list of variants
// into the full grid of experiments to run.
package sweep

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/tasks"
)

// Key identifies an experiment in a grid by its simplified model id and variant name.
type Key struct {
	Model   string `json:"model"`
	Variant string `json:"variant"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Model, k.Variant)
}

type (
	// ModelOverrides holds per-model hyperparameters, keyed by simplified model id.
	ModelOverrides map[string]*hparams.Hyperparameters
	// VariantOverrides holds per-variant hyperparameters.
	VariantOverrides map[Variant]*hparams.Hyperparameters
)

// GridConfig is the input of Generate.
type GridConfig struct {
	// Hyperparameters is the base set every experiment starts from.
	Hyperparameters *hparams.Hyperparameters
	// Models are fully-qualified base model ids.
	Models []string
	// Variants default to tasks.DefaultTasks when empty.
	Variants []Variant
	// ModelOverrides apply on top of the base set; models without an entry get none.
	ModelOverrides ModelOverrides
	// VariantOverrides apply last and win over model overrides.
	VariantOverrides VariantOverrides
	// Namer defaults to DefaultNamer.
	Namer PolicyNamer
	// Org is handed to the namer.
	Org string
	// ProjectName overrides the per-variant default tracking project.
	ProjectName string
	// Device is copied onto every experiment.
	Device string
}

// TaskVariants converts tasks to variants.
func TaskVariants(ts ...tasks.Task) []Variant {
	vs := make([]Variant, 0, len(ts))
	for _, t := range ts {
		vs = append(vs, t)
	}
	return vs
}

// RewardVariants converts reward functions to variants.
func RewardVariants(rs ...tasks.RewardFunction) []Variant {
	vs := make([]Variant, 0, len(rs))
	for _, r := range rs {
		vs = append(vs, r)
	}
	return vs
}

// Grid is the ordered result of Generate: models in input order, variants in input order within
// each model.
type Grid struct {
	keys        []Key
	experiments map[Key]*Experiment
}

func newGrid() *Grid {
	return &Grid{experiments: map[Key]*Experiment{}}
}

func (g *Grid) put(k Key, e *Experiment) {
	if _, ok := g.experiments[k]; !ok {
		g.keys = append(g.keys, k)
	}
	g.experiments[k] = e
}

// Len returns the number of experiments.
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.keys)
}

// Keys returns the keys in generation order.
func (g *Grid) Keys() []Key {
	if g == nil {
		return nil
	}
	return append([]Key(nil), g.keys...)
}

// Get looks up an experiment.
func (g *Grid) Get(k Key) (*Experiment, bool) {
	if g == nil {
		return nil, false
	}
	e, ok := g.experiments[k]
	return e, ok
}

// Each calls fn on every experiment in generation order.
func (g *Grid) Each(fn func(Key, *Experiment)) {
	if g == nil {
		return
	}
	for _, k := range g.keys {
		fn(k, g.experiments[k])
	}
}

// Experiments returns the experiments in generation order.
func (g *Grid) Experiments() []*Experiment {
	var out []*Experiment
	g.Each(func(_ Key, e *Experiment) {
		out = append(out, e)
	})
	return out
}

type gridEntry struct {
	Key
	Experiment *Experiment `json:"experiment"`
}

// MarshalJSON renders the grid as an ordered list of entries.
func (g *Grid) MarshalJSON() ([]byte, error) {
	entries := make([]gridEntry, 0, g.Len())
	g.Each(func(k Key, e *Experiment) {
		entries = append(entries, gridEntry{Key: k, Experiment: e})
	})
	return json.Marshal(entries)
}

// Generate builds one experiment per (model, variant) pair. Each experiment's hyperparameters are
// the base set, then the model's overrides, then the variant's overrides, with later layers
// winning. Generate never mutates its input and returns a grid of len(Models)*len(Variants)
// experiments, or fewer when two models share a simplified id.
func Generate(cfg GridConfig) *Grid {
	variants := cfg.Variants
	if len(variants) == 0 {
		variants = TaskVariants(tasks.DefaultTasks()...)
	}
	namer := cfg.Namer
	if namer == nil {
		namer = DefaultNamer
	}

	grid := newGrid()
	for _, model := range cfg.Models {
		simplified := SimplifiedModelID(model)
		modelHP := cfg.Hyperparameters.Merge(cfg.ModelOverrides[simplified])
		for _, variant := range variants {
			hp := modelHP.Merge(cfg.VariantOverrides[variant])
			policy := namer.PolicyName(NameData{
				Model:     simplified,
				BaseModel: model,
				Variant:   variant.Name(),
				Org:       cfg.Org,
			})
			key := Key{Model: simplified, Variant: variant.Name()}
			if _, ok := grid.Get(key); ok {
				log.WithField("key", key).Warn("duplicate simplified model id, replacing experiment")
			}
			grid.put(key, NewExperiment(hp, model, policy, variant,
				WithProjectName(cfg.ProjectName), WithDevice(cfg.Device)))
			log.WithFields(log.Fields{
				"model":   model,
				"variant": variant.Name(),
				"policy":  policy,
			}).Debug("generated experiment")
		}
	}
	return grid
}
