// Package config is the configuration of the reward-analyzer command.
package config

import (
	"encoding/json"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/apartresearch/reward-analyzer/internal/pipeline"
	"github.com/apartresearch/reward-analyzer/internal/storage"
	"github.com/apartresearch/reward-analyzer/internal/trainer"
	"github.com/apartresearch/reward-analyzer/internal/tracking"
	"github.com/apartresearch/reward-analyzer/pkg/artifacts"
	"github.com/apartresearch/reward-analyzer/pkg/check"
	"github.com/apartresearch/reward-analyzer/pkg/logger"
)

// Registry backends.
const (
	MemoryRegistry   = "memory"
	PostgresRegistry = "postgres"
)

const hiddenValue = "********"

// TrackingConfig configures where artifacts are published.
type TrackingConfig struct {
	Entity         string `json:"entity"`
	ProjectPrefix  string `json:"project_prefix"`
	ArtifactPrefix string `json:"artifact_prefix"`
	DownloadRoot   string `json:"download_root"`
	Registry       string `json:"registry"`
}

// Naming returns the artifact naming scheme.
func (t TrackingConfig) Naming() artifacts.Naming {
	return artifacts.Naming{
		Entity:         t.Entity,
		ProjectPrefix:  t.ProjectPrefix,
		ArtifactPrefix: t.ArtifactPrefix,
	}
}

// Validate implements the check.Validatable interface.
func (t TrackingConfig) Validate() []error {
	return []error{
		check.NotEmpty(t.Entity, "tracking entity must be set"),
		check.NotEmpty(t.ArtifactPrefix, "tracking artifact_prefix must be set"),
		check.Contains(t.Registry, []string{MemoryRegistry, PostgresRegistry},
			"invalid tracking registry"),
	}
}

// RunnerConfig configures sweep runs.
type RunnerConfig struct {
	pipeline.RunnerConfig
	Trainer trainer.Config `json:"trainer"`
}

// Validate implements the check.Validatable interface.
func (r RunnerConfig) Validate() []error {
	return []error{
		check.GreaterThanOrEqualTo(r.MaxConcurrent, 1, "runner max_concurrent must be >= 1"),
		check.GreaterThanOrEqualTo(r.SaveRetries, 0, "runner save_retries must be >= 0"),
	}
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port int `json:"port"`
	// LogBufferSize is how many log entries the logs endpoint keeps.
	LogBufferSize int `json:"log_buffer_size"`
}

// Validate implements the check.Validatable interface.
func (a APIConfig) Validate() []error {
	return []error{
		check.GreaterThan(a.Port, 0, "api port must be > 0"),
		check.GreaterThanOrEqualTo(a.LogBufferSize, 0, "api log_buffer_size must be >= 0"),
	}
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics of a run in the node-exporter textfile format.
	Textfile string `json:"textfile"`
}

// Config is the full configuration.
type Config struct {
	ConfigFile string            `json:"config_file"`
	Log        logger.Config     `json:"log"`
	Tracking   TrackingConfig    `json:"tracking"`
	DB         tracking.DBConfig `json:"db"`
	Storage    storage.Config    `json:"storage"`
	Runner     RunnerConfig      `json:"runner"`
	API        APIConfig         `json:"api"`
	Metrics    MetricsConfig     `json:"metrics"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	naming := artifacts.DefaultNaming()
	return &Config{
		Log: *logger.DefaultConfig(),
		Tracking: TrackingConfig{
			Entity:         naming.Entity,
			ProjectPrefix:  naming.ProjectPrefix,
			ArtifactPrefix: naming.ArtifactPrefix,
			DownloadRoot:   "downloads",
			Registry:       MemoryRegistry,
		},
		DB:      tracking.DefaultDBConfig(),
		Storage: storage.DefaultConfig(),
		Runner: RunnerConfig{
			RunnerConfig: pipeline.RunnerConfig{
				MaxConcurrent: 1,
				SaveRetries:   3,
				SaveRoot:      "saves",
			},
			Trainer: trainer.Config{
				WorkDir: "work",
				Dataset: pipeline.DefaultDataset,
			},
		},
		API: APIConfig{
			Port:          8080,
			LogBufferSize: 5000,
		},
	}
}

// Resolve makes the configured paths absolute.
func (c *Config) Resolve() error {
	for _, p := range []*string{
		&c.Tracking.DownloadRoot,
		&c.Runner.SaveRoot,
		&c.Runner.Trainer.WorkDir,
	} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return errors.Wrapf(err, "resolving %s", *p)
		}
		*p = abs
	}
	if c.Metrics.Textfile != "" {
		abs, err := filepath.Abs(c.Metrics.Textfile)
		if err != nil {
			return err
		}
		c.Metrics.Textfile = abs
	}
	return nil
}

// Printable returns the configuration as JSON with secrets hidden.
func (c Config) Printable() ([]byte, error) {
	c.DB = c.DB.Printable()
	c.Storage = c.Storage.Printable()
	if len(c.Runner.Trainer.Env) > 0 {
		env := make(map[string]string, len(c.Runner.Trainer.Env))
		for k := range c.Runner.Trainer.Env {
			env[k] = hiddenValue
		}
		c.Runner.Trainer.Env = env
	}
	optJSON, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert config to JSON")
	}
	return optJSON, nil
}
