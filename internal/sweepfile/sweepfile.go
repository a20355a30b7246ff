// Package sweepfile loads sweep definitions from YAML, JSON or HCL files into grid configs.
package sweepfile

import (
	"bytes"
	_ "embed" // schema.json
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v2"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/sweep"
	"github.com/apartresearch/reward-analyzer/pkg/tasks"
)

const schemaURL = "http://reward-analyzer/schemas/sweep-file.json"

//go:embed schema.json
var schemaBytes []byte

var validator = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaBytes)); err != nil {
		panic("invalid schema: " + schemaURL)
	}
	s, err := compiler.Compile(schemaURL)
	if err != nil {
		panic("uncompilable schema: " + schemaURL)
	}
	return s
}()

// Hyperparameters is either the name of a preset or an inline set.
type Hyperparameters struct {
	Preset string
	Inline *hparams.Hyperparameters
}

// Resolve returns the set the field describes.
func (h *Hyperparameters) Resolve() (*hparams.Hyperparameters, error) {
	if h == nil {
		return nil, nil
	}
	if h.Inline != nil {
		return h.Inline.Copy(), nil
	}
	return hparams.Preset(h.Preset)
}

// UnmarshalJSON accepts a string or an object.
func (h *Hyperparameters) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &h.Preset)
	}
	h.Inline = hparams.New()
	return h.Inline.UnmarshalJSON(data)
}

// MarshalJSON implements json.Marshaler.
func (h Hyperparameters) MarshalJSON() ([]byte, error) {
	if h.Inline != nil {
		return json.Marshal(h.Inline)
	}
	return json.Marshal(h.Preset)
}

// File is a parsed sweep file.
type File struct {
	// Preset names the sweep generation the file starts from.
	Preset string `json:"preset,omitempty"`
	// Hyperparameters replaces the generation's base set.
	Hyperparameters *Hyperparameters `json:"hyperparameters,omitempty"`
	// HyperparameterOverrides is merged on top of the base set.
	HyperparameterOverrides *hparams.Hyperparameters `json:"hyperparameter_overrides,omitempty"`

	Models          []string               `json:"models,omitempty"`
	Tasks           []tasks.Task           `json:"tasks,omitempty"`
	RewardFunctions []tasks.RewardFunction `json:"reward_functions,omitempty"`

	ModelOverrides map[string]*hparams.Hyperparameters `json:"model_overrides,omitempty"`
	// TaskOverrides is keyed by task or reward function name.
	TaskOverrides map[string]*hparams.Hyperparameters `json:"task_overrides,omitempty"`

	PolicyNameTemplate string `json:"policy_name_template,omitempty"`
	Org                string `json:"org,omitempty"`
	Project            string `json:"project,omitempty"`
	Device             string `json:"device,omitempty"`
}

// Load reads a sweep file, choosing the format by extension.
func Load(path string) (*File, error) {
	var parse func([]byte) (*File, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parse = ParseYAML
	case ".json":
		parse = ParseJSON
	case ".hcl":
		parse = func(bs []byte) (*File, error) {
			return ParseHCL(bs, path)
		}
	default:
		return nil, errors.Errorf("unsupported sweep file extension %q", ext)
	}
	bs, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	f, err := parse(bs)
	if err != nil {
		return nil, errors.Wrapf(err, "loading sweep file %s", path)
	}
	return f, nil
}

// ParseYAML parses a YAML sweep file. Mapping order is kept, as in JSON files.
func ParseYAML(bs []byte) (*File, error) {
	js, err := yamlToJSON(bs)
	if err != nil {
		return nil, errors.Wrap(err, "converting yaml")
	}
	return ParseJSON(js)
}

// ParseJSON parses a JSON sweep file.
func ParseJSON(bs []byte) (*File, error) {
	if err := validator.Validate(bytes.NewReader(bs)); err != nil {
		return nil, errors.Wrap(err, "invalid sweep file")
	}
	var f File
	if err := json.Unmarshal(bs, &f); err != nil {
		return nil, err
	}
	if len(f.Tasks) > 0 && len(f.RewardFunctions) > 0 {
		return nil, errors.New("a sweep file sets either tasks or reward_functions, not both")
	}
	for name := range f.TaskOverrides {
		if _, err := parseVariant(name); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func parseVariant(name string) (sweep.Variant, error) {
	if t, err := tasks.ParseTask(name); err == nil {
		return t, nil
	}
	if r, err := tasks.ParseRewardFunction(name); err == nil {
		return r, nil
	}
	return nil, errors.Errorf("unknown task or reward function %q in task_overrides", name)
}

func (f *File) generation() string {
	switch {
	case f.Preset != "":
		return f.Preset
	case len(f.RewardFunctions) > 0:
		return sweep.RewardFunctions
	default:
		return sweep.AutoencoderTasks
	}
}

// GridConfig builds the grid config the file describes on top of its generation.
func (f *File) GridConfig() (sweep.GridConfig, error) {
	base, err := f.Hyperparameters.Resolve()
	if err != nil {
		return sweep.GridConfig{}, err
	}
	cfg, err := sweep.Generation(f.generation(), base)
	if err != nil {
		return sweep.GridConfig{}, err
	}
	cfg.Hyperparameters = cfg.Hyperparameters.Merge(f.HyperparameterOverrides)

	if len(f.Models) > 0 {
		cfg.Models = append([]string(nil), f.Models...)
	}
	switch {
	case len(f.Tasks) > 0:
		cfg.Variants = sweep.TaskVariants(f.Tasks...)
	case len(f.RewardFunctions) > 0:
		cfg.Variants = sweep.RewardVariants(f.RewardFunctions...)
	}

	if len(f.ModelOverrides) > 0 && cfg.ModelOverrides == nil {
		cfg.ModelOverrides = sweep.ModelOverrides{}
	}
	for model, hp := range f.ModelOverrides {
		cfg.ModelOverrides[model] = cfg.ModelOverrides[model].Merge(hp)
	}
	if len(f.TaskOverrides) > 0 && cfg.VariantOverrides == nil {
		cfg.VariantOverrides = sweep.VariantOverrides{}
	}
	for name, hp := range f.TaskOverrides {
		v, err := parseVariant(name)
		if err != nil {
			return sweep.GridConfig{}, err
		}
		cfg.VariantOverrides[v] = cfg.VariantOverrides[v].Merge(hp)
	}

	if f.Org != "" {
		cfg.Org = f.Org
		cfg.Namer = sweep.OrgNamer(f.Org)
	}
	if f.PolicyNameTemplate != "" {
		namer, err := sweep.NewTemplateNamer(f.PolicyNameTemplate)
		if err != nil {
			return sweep.GridConfig{}, err
		}
		cfg.Namer = namer
	}
	if f.Project != "" {
		cfg.ProjectName = f.Project
	}
	if f.Device != "" {
		cfg.Device = f.Device
	}
	return cfg, nil
}
