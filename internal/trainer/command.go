// Package trainer runs the external training process of an experiment.
package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/ghodss/yaml"
	"github.com/huandu/xstrings"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/apartresearch/reward-analyzer/internal/pipeline"
	"github.com/apartresearch/reward-analyzer/pkg/artifacts"
	"github.com/apartresearch/reward-analyzer/pkg/sweep"
)

// Environment variables set for the training process.
const (
	EnvBaseModel           = "RA_TRAIN_BASE_MODEL"
	EnvPolicyModel         = "RA_TRAIN_POLICY_MODEL"
	EnvVariant             = "RA_TRAIN_VARIANT"
	EnvProject             = "RA_TRAIN_PROJECT"
	EnvDevice              = "RA_TRAIN_DEVICE"
	EnvHyperparameters     = "RA_TRAIN_HYPERPARAMETERS"
	EnvHyperparametersFile = "RA_TRAIN_HYPERPARAMETERS_FILE"
	EnvOutputDir           = "RA_TRAIN_OUTPUT_DIR"
)

const (
	hyperparametersFile = "hyperparameters.json"
	outputDir           = "output"
)

// Config configures a CommandTrainer.
type Config struct {
	// Command is the argv of the training process. Every element is a template over TemplateData.
	Command []string `json:"command"`
	// WorkDir holds one scratch directory per experiment.
	WorkDir string `json:"work_dir"`
	// Env is added to the process environment.
	Env map[string]string `json:"env"`
	// Dataset and PushToHub configure the RLHF settings handed to the template.
	Dataset   string `json:"dataset"`
	PushToHub bool   `json:"push_to_hub"`
}

// TemplateData is what command templates see of an experiment.
type TemplateData struct {
	BaseModel           string
	Policy              string
	Variant             string
	Project             string
	Device              string
	Hyperparameters     map[string]interface{}
	HyperparametersFile string
	OutputDir           string
	WorkDir             string
	RLHF                *pipeline.RLHFPipeline
}

// CommandTrainer trains an experiment by running an external command. The command reads its
// hyperparameters from RA_TRAIN_HYPERPARAMETERS or the file named by RA_TRAIN_HYPERPARAMETERS_FILE
// and writes the four autoencoder groups under RA_TRAIN_OUTPUT_DIR.
type CommandTrainer struct {
	cfg   Config
	argv  []*template.Template
	funcs template.FuncMap
}

var _ pipeline.Trainer = (*CommandTrainer)(nil)

func funcMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["upperFirst"] = xstrings.FirstRuneToUpper
	funcs["lowerFirst"] = xstrings.FirstRuneToLower
	funcs["reflectKind"] = func(val interface{}) string {
		if val == nil {
			return ""
		}
		return reflect.TypeOf(val).Kind().String()
	}
	funcs["toYaml"] = func(v interface{}) (string, error) {
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return funcs
}

// NewCommandTrainer parses the command templates.
func NewCommandTrainer(cfg Config) (*CommandTrainer, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("trainer command must be set")
	}
	t := &CommandTrainer{cfg: cfg, funcs: funcMap()}
	for i, arg := range cfg.Command {
		tmpl, err := template.New(fmt.Sprintf("arg%d", i)).
			Option("missingkey=error").
			Funcs(t.funcs).
			Parse(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing trainer command argument %q", arg)
		}
		t.argv = append(t.argv, tmpl)
	}
	return t, nil
}

func (t *CommandTrainer) templateData(exp *sweep.Experiment, workDir string) (*TemplateData, error) {
	hp := exp.Hyperparameters()
	rlhf, err := pipeline.NewRLHFPipeline(exp.BaseModelName(),
		pipeline.WithDataset(t.dataset()),
		pipeline.WithPushToHub(t.cfg.PushToHub),
		pipeline.WithConfig(hp))
	if err != nil {
		return nil, err
	}
	return &TemplateData{
		BaseModel:           exp.BaseModelName(),
		Policy:              exp.PolicyModelName(),
		Variant:             exp.Variant().Name(),
		Project:             exp.ProjectName(),
		Device:              exp.Device(),
		Hyperparameters:     hp.ToMap(),
		HyperparametersFile: filepath.Join(workDir, hyperparametersFile),
		OutputDir:           filepath.Join(workDir, outputDir),
		WorkDir:             workDir,
		RLHF:                rlhf,
	}, nil
}

func (t *CommandTrainer) dataset() string {
	if t.cfg.Dataset == "" {
		return pipeline.DefaultDataset
	}
	return t.cfg.Dataset
}

// Command renders the argv of exp as it would run in workDir.
func (t *CommandTrainer) Command(exp *sweep.Experiment, workDir string) ([]string, error) {
	data, err := t.templateData(exp, workDir)
	if err != nil {
		return nil, err
	}
	return t.render(data)
}

func (t *CommandTrainer) render(data *TemplateData) ([]string, error) {
	argv := make([]string, 0, len(t.argv))
	for _, tmpl := range t.argv {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, errors.Wrap(err, "rendering trainer command")
		}
		argv = append(argv, buf.String())
	}
	if argv[0] == "" {
		return nil, errors.New("trainer command renders an empty program name")
	}
	return argv, nil
}

// Train implements pipeline.Trainer.
func (t *CommandTrainer) Train(ctx context.Context, exp *sweep.Experiment) (artifacts.Bundle, error) {
	if err := os.MkdirAll(t.cfg.WorkDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(t.cfg.WorkDir,
		artifacts.SimplifiedPolicyName(exp.PolicyModelName())+"-")
	if err != nil {
		return nil, errors.Wrap(err, "creating work dir")
	}
	data, err := t.templateData(exp, workDir)
	if err != nil {
		return nil, err
	}
	argv, err := t.render(data)
	if err != nil {
		return nil, err
	}

	hpJSON, err := json.Marshal(exp.Hyperparameters())
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(data.HyperparametersFile, hpJSON, 0o600); err != nil {
		return nil, errors.Wrap(err, "writing hyperparameters")
	}
	if err := os.MkdirAll(data.OutputDir, 0o755); err != nil {
		return nil, err
	}

	entry := log.WithFields(log.Fields{
		"policy":  data.Policy,
		"variant": data.Variant,
	})
	stdout := entry.WriterLevel(log.InfoLevel)
	defer stdout.Close()
	stderr := entry.WriterLevel(log.WarnLevel)
	defer stderr.Close()

	// #nosec G204
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Stdout, cmd.Stderr = stdout, stderr
	cmd.Env = append(os.Environ(),
		EnvBaseModel+"="+data.BaseModel,
		EnvPolicyModel+"="+data.Policy,
		EnvVariant+"="+data.Variant,
		EnvProject+"="+data.Project,
		EnvDevice+"="+data.Device,
		EnvHyperparameters+"="+string(hpJSON),
		EnvHyperparametersFile+"="+data.HyperparametersFile,
		EnvOutputDir+"="+data.OutputDir,
	)
	for k, v := range t.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	entry.WithField("argv", argv).Info("starting trainer")
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "trainer command %q failed", argv[0])
	}
	return artifacts.LoadBundle(data.OutputDir)
}
