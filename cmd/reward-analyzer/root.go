package main

import (
	"encoding/json"
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/apartresearch/reward-analyzer/internal/config"
	"github.com/apartresearch/reward-analyzer/pkg/check"
	"github.com/apartresearch/reward-analyzer/pkg/logger"
)

const defaultConfigPath = "/etc/reward-analyzer/config.yaml"

var rootCmd = &cobra.Command{
	Use:   "reward-analyzer",
	Short: "Generate, run and publish sparse-autoencoder sweeps over RLHF-tuned policies",
	// Usage is noise on runtime errors; flag errors still print it.
	SilenceUsage: true,
}

// initializeConfig returns the validated configuration populated from the config file,
// environment variables and command line flags, and configures logging from it.
func initializeConfig() (*config.Config, error) {
	// Fetch an initial config to get the config file path and read its settings into Viper.
	initialConfig, err := getConfig(v.AllSettings())
	if err != nil {
		return nil, err
	}

	bs, err := readConfigFile(initialConfig.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err = mergeConfigBytesIntoViper(bs); err != nil {
		return nil, err
	}

	// Now call viper.AllSettings() again to get the full config, containing all values from CLI
	// flags, environment variables, and the configuration file.
	cfg, err := getConfig(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if err := check.Validate(cfg); err != nil {
		return nil, err
	}

	logger.SetLogrus(cfg.Log)
	printable, err := cfg.Printable()
	if err != nil {
		return nil, err
	}
	log.Debugf("configuration: %s", printable)
	return cfg, nil
}

func readConfigFile(configPath string) ([]byte, error) {
	isDefault := configPath == ""
	if isDefault {
		configPath = defaultConfigPath
	}

	var err error
	if _, err = os.Stat(configPath); err != nil {
		if isDefault && os.IsNotExist(err) {
			log.Debugf("no configuration file at %s, skipping", configPath)
			return nil, nil
		}
		return nil, errors.Wrap(err, "error finding configuration file")
	}
	bs, err := os.ReadFile(configPath) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "error reading configuration file")
	}
	return bs, nil
}

func mergeConfigBytesIntoViper(bs []byte) error {
	var configMap map[string]interface{}
	if err := yaml.Unmarshal(bs, &configMap); err != nil {
		return errors.Wrap(err, "error unmarshal yaml configuration file")
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return errors.Wrap(err, "error merge configuration to viper")
	}
	return nil
}

func getConfig(configMap map[string]interface{}) (*config.Config, error) {
	cfg := config.DefaultConfig()
	bs, err := json.Marshal(configMap)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal configuration map into json bytes")
	}
	if err = yaml.Unmarshal(bs, cfg, yaml.DisallowUnknownFields); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal configuration")
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}
