package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var configGen = &cobra.Command{
	Use:   "create",
	Short: "Create a config",
	Long: `Create a config to use for envmon, from the current settings.

The config file will be placed in $HOME/.envmon/envmon.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		home, err := os.UserHomeDir()
		if err != nil {
			wrapFatalln("could not get home directory for user", err)
			return
		}
		o, err := yaml.Marshal(cfg)
		if err != nil {
			wrapFatalln("serialize config to yaml", err)
			return
		}
		dir := filepath.Join(home, ".envmon")
		if err = os.MkdirAll(dir, 0o700); err != nil {
			wrapFatalln("create config directory", err)
			return
		}
		target := filepath.Join(dir, "envmon.yaml")
		if err = os.WriteFile(target, o, 0o600); err != nil {
			wrapFatalln("write config file", err)
			return
		}
		infoLogger.Printf("config written to %s", target)
	},
}

func init() {
	configCmd.AddCommand(configGen)
}
