package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/apartresearch/reward-analyzer/internal/config"
	"github.com/apartresearch/reward-analyzer/internal/storage"
	"github.com/apartresearch/reward-analyzer/internal/version"
)

var v *viper.Viper

// viperKeyDelimiter marks nested values in the configuration. With "." viper could not tell a key
// containing a dot, like a model id in an override table, from a nested object.
const viperKeyDelimiter = ".."

//nolint:gochecknoinit
func init() {
	// Link-time variable assignments are not applied when package-scoped variables are
	// initialized, so the version is set here.
	rootCmd.Version = version.Version
	registerConfig()

	rootCmd.AddCommand(newGridCmd(), newRunCmd(), newServeCmd(), newArtifactsCmd(), newVersionCmd())
}

type configKey []string

func (c configKey) EnvName() string {
	return "RA_" + strings.ReplaceAll(strings.ToUpper(c.FlagName()), "-", "_")
}

func (c configKey) AccessPath() string {
	return strings.ReplaceAll(strings.Join(c, viperKeyDelimiter), "-", "_")
}

func (c configKey) FlagName() string {
	return strings.Join(c, "-")
}

func registerString(flags *pflag.FlagSet, name configKey, value string, usage string) {
	flags.String(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerBool(flags *pflag.FlagSet, name configKey, value bool, usage string) {
	flags.Bool(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerInt(flags *pflag.FlagSet, name configKey, value int, usage string) {
	flags.Int(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerConfig() {
	v = viper.NewWithOptions(viper.KeyDelimiter(viperKeyDelimiter))
	v.SetTypeByDefaultValue(true)

	defaults := config.DefaultConfig()

	// Flags are persistent so every subcommand reads the same configuration.
	flags := rootCmd.PersistentFlags()
	name := func(components ...string) configKey { return components }

	registerString(flags, name("config-file"),
		defaults.ConfigFile, "location of config file")

	registerString(flags, name("log", "level"),
		defaults.Log.Level, "choose logging level from [trace, debug, info, warn, error, fatal]")
	registerBool(flags, name("log", "color"),
		defaults.Log.Color, "output logs in color")

	registerString(flags, name("tracking", "entity"),
		defaults.Tracking.Entity, "entity artifacts are published under")
	registerString(flags, name("tracking", "project-prefix"),
		defaults.Tracking.ProjectPrefix, "prefix of the per-policy tracking projects")
	registerString(flags, name("tracking", "artifact-prefix"),
		defaults.Tracking.ArtifactPrefix, "prefix of artifact names")
	registerString(flags, name("tracking", "download-root"),
		defaults.Tracking.DownloadRoot, "directory downloaded artifacts are unpacked under")
	registerString(flags, name("tracking", "registry"),
		defaults.Tracking.Registry, "artifact registry backend (memory, postgres)")

	registerString(flags, name("db", "user"),
		defaults.DB.User, "database username")
	registerString(flags, name("db", "password"),
		defaults.DB.Password, "database password")
	registerString(flags, name("db", "host"),
		defaults.DB.Host, "database host")
	registerString(flags, name("db", "port"),
		defaults.DB.Port, "database port")
	registerString(flags, name("db", "name"),
		defaults.DB.Name, "database name")
	registerString(flags, name("db", "ssl-mode"),
		defaults.DB.SSLMode, "database ssl mode (disable, require, verify-ca, verify-full)")
	registerBool(flags, name("db", "debug"),
		defaults.DB.Debug, "log every database query")

	registerString(flags, name("storage", "type"),
		storage.SharedFS, "artifact storage type (shared_fs, s3, gcs)")
	registerString(flags, name("storage", "host-path"),
		defaults.Storage.SharedFS.HostPath, "artifact storage host path")

	registerInt(flags, name("runner", "max-concurrent"),
		defaults.Runner.MaxConcurrent, "experiments trained at once")
	registerInt(flags, name("runner", "save-retries"),
		defaults.Runner.SaveRetries, "retries of a failed artifact save")
	registerString(flags, name("runner", "alias"),
		defaults.Runner.Alias, "extra alias added to every published artifact")
	registerString(flags, name("runner", "save-root"),
		defaults.Runner.SaveRoot, "directory local saves are written under")

	registerInt(flags, name("api", "port"),
		defaults.API.Port, "api server port")
	registerInt(flags, name("api", "log-buffer-size"),
		defaults.API.LogBufferSize, "log entries kept for the logs endpoint")

	registerString(flags, name("metrics", "textfile"),
		defaults.Metrics.Textfile, "file run metrics are written to")
}
