package cmd

import (
	"os"

	"github.com/oneconcern/envmon/pkg/config"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// config keys, as found in envmon.yaml or as ENVMON_* environment variables
const (
	keyTempDir        = "temp_dir"
	keyDataDir        = "data_dir"
	keyCacheDir       = "cache_dir"
	keySystem         = "system"
	keyGit            = "git"
	keyBuildBackend   = "build_backend"
	keyGlobalManifest = "global_manifest"
	keyUpstream       = "upstream"
	keyLogLevel       = "log_level"
)

// newConfig builds the configuration from defaults, the config file and the environment.
//
// A configured global manifest which does not exist is ignored.
func newConfig(configFile string) (*config.Config, error) {
	v := viper.New()
	defaults := config.Default()
	for key, value := range map[string]string{
		keyTempDir:        defaults.TempDir,
		keyDataDir:        defaults.DataDir,
		keyCacheDir:       defaults.CacheDir,
		keySystem:         defaults.System,
		keyGit:            defaults.GitBinary,
		keyBuildBackend:   defaults.BuildBackend,
		keyGlobalManifest: defaults.GlobalManifest,
		keyUpstream:       defaults.Upstream,
		keyLogLevel:       defaults.LogLevel,
	} {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("envmon")
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv("ENVMON_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.envmon")
		v.AddConfigPath("/etc/envmon")
		v.SetConfigName("envmon")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &config.Config{
		TempDir:        v.GetString(keyTempDir),
		DataDir:        v.GetString(keyDataDir),
		CacheDir:       v.GetString(keyCacheDir),
		System:         v.GetString(keySystem),
		GitBinary:      v.GetString(keyGit),
		BuildBackend:   v.GetString(keyBuildBackend),
		GlobalManifest: v.GetString(keyGlobalManifest),
		Upstream:       v.GetString(keyUpstream),
		LogLevel:       v.GetString(keyLogLevel),
	}
	if cfg.GlobalManifest != "" {
		if _, err := os.Stat(cfg.GlobalManifest); os.IsNotExist(err) {
			cfg.GlobalManifest = ""
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage a config",
	Long: `Commands to manage envmon CLI config.

Configuration for envmon is the set of settings which do not change across runs:
where state is kept, the git and build backend executables, the upstream location.

Settings are read from envmon.yaml, then overridden by ENVMON_* environment variables,
e.g. ENVMON_DATA_DIR.`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
