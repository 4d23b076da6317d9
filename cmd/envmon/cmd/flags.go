package cmd

import (
	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		dir         string
		config      string
		logLevel    string
		metricsFile string
		cpuProf     bool
	}
	edit struct {
		file string
	}
	upgrade struct {
		dryRun bool
	}
	version struct {
		json bool
	}
	sync struct {
		force     bool
		new       bool
		owner     string
		name      string
		addSystem bool
	}
}

var envmonFlags = flagsT{}

const defaultDir = ".flox"

func addDirFlag(cmd *cobra.Command) string {
	const dir = "dir"
	cmd.PersistentFlags().StringVarP(&envmonFlags.root.dir, dir, "d", defaultDir, "The directory holding the environment")
	return dir
}

func addConfigFlag(cmd *cobra.Command) string {
	const c = "config"
	cmd.PersistentFlags().StringVar(&envmonFlags.root.config, c, "",
		"Use this config file instead of envmon.yaml from ., $HOME/.envmon or /etc/envmon")
	return c
}

func addLogLevel(cmd *cobra.Command) string {
	const logLevel = "log-level"
	cmd.PersistentFlags().StringVar(&envmonFlags.root.logLevel, logLevel, "", "The logging level: debug, info, warn, error or none")
	return logLevel
}

func addMetricsFileFlag(cmd *cobra.Command) string {
	const metricsFile = "metrics-file"
	cmd.PersistentFlags().StringVar(&envmonFlags.root.metricsFile, metricsFile, "", "Write metrics to this file, in the prometheus text format")
	return metricsFile
}

func addCPUProfFlag(cmd *cobra.Command) string {
	const cpuProf = "cpuprof"
	cmd.PersistentFlags().BoolVar(&envmonFlags.root.cpuProf, cpuProf, false, "Toggles cpu profiling, written to cpu.prof")
	_ = cmd.PersistentFlags().MarkHidden(cpuProf)
	return cpuProf
}

func addEditFileFlag(cmd *cobra.Command) string {
	const file = "file"
	cmd.Flags().StringVarP(&envmonFlags.edit.file, file, "f", "", "Replace the manifest with the contents of this file, - for stdin")
	return file
}

func addDryRunFlag(cmd *cobra.Command) string {
	const dryRun = "dry-run"
	cmd.Flags().BoolVar(&envmonFlags.upgrade.dryRun, dryRun, false, "Show what would be upgraded, without changing the environment")
	return dryRun
}

func addJSONFlag(cmd *cobra.Command) string {
	const j = "json"
	cmd.Flags().BoolVar(&envmonFlags.version.json, j, false, "Print as JSON")
	return j
}

func addForceFlag(cmd *cobra.Command, usage string) string {
	const force = "force"
	cmd.Flags().BoolVar(&envmonFlags.sync.force, force, false, usage)
	return force
}

func addNewFlag(cmd *cobra.Command) string {
	const n = "new"
	cmd.Flags().BoolVar(&envmonFlags.sync.new, n, false, "Publish a local environment as a new upstream environment")
	return n
}

func addOwnerFlag(cmd *cobra.Command) string {
	const owner = "owner"
	cmd.Flags().StringVar(&envmonFlags.sync.owner, owner, "", "The owner of the new upstream environment")
	return owner
}

func addNameFlag(cmd *cobra.Command) string {
	const name = "name"
	cmd.Flags().StringVar(&envmonFlags.sync.name, name, "",
		"The name of the new upstream environment. Defaults to the name of the project directory")
	return name
}

func addAddSystemFlag(cmd *cobra.Command) string {
	const addSystem = "add-system"
	cmd.Flags().BoolVar(&envmonFlags.sync.addSystem, addSystem, false,
		"Declare the current system as supported when the pulled environment does not build here")
	return addSystem
}

// requireFlags sets flags as required
func requireFlags(cmd *cobra.Command, flags ...string) {
	for _, flag := range flags {
		err := cobra.MarkFlagRequired(cmd.Flags(), flag)
		if err != nil {
			wrapFatalln("error attempting to mark a required flag", err)
			return
		}
	}
}
