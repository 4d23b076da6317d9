// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/oneconcern/envmon/pkg/buildenv"
	"github.com/oneconcern/envmon/pkg/config"
	"github.com/oneconcern/envmon/pkg/dlogger"
	"github.com/oneconcern/envmon/pkg/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "envmon",
	Short: "envmon manages declarative package environments",
	Long: `envmon manages declarative package environments.

An environment is described by a manifest, resolved into a lockfile and built by a backend.
Every change is transactional: it is applied to a copy of the environment, which replaces
the live environment only once it builds.

Environments may be kept in a project directory (.flox by default), or managed: recorded
as numbered generations in a git repository shared with other machines through push and pull.
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envmonFlags.root.cpuProf {
			f, err := os.Create("cpu.prof")
			if err != nil {
				log.Fatal(err)
			}
			_ = pprof.StartCPUProfile(f)
		}
	},
	// upstream api note:  *PostRun functions aren't called in case of a panic() in Run
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if envmonFlags.root.cpuProf {
			pprof.StopCPUProfile()
		}
		flushMetrics()
	},
}

var (
	cfg    *config.Config
	logger *zap.Logger
	m      *metrics.M

	// used to patch over the build backend during test
	newBackend = func(cfg *config.Config, l *zap.Logger) buildenv.Backend {
		return buildenv.New(cfg.BuildBackend, buildenv.WithSystem(cfg.System), buildenv.WithLogger(l))
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(exitError)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addDirFlag(rootCmd)
	addConfigFlag(rootCmd)
	addLogLevel(rootCmd)
	addMetricsFileFlag(rootCmd)
	addCPUProfFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	cfg, err = newConfig(envmonFlags.root.config)
	if err != nil {
		wrapFatalln("config", err)
		return
	}
	if envmonFlags.root.logLevel != "" {
		cfg.LogLevel = envmonFlags.root.logLevel
	}
	logger, err = dlogger.GetLogger(cfg.LogLevel)
	if err != nil {
		wrapFatalln("failed to set log level", err)
		return
	}
	if err = cfg.EnsureDirs(); err != nil {
		wrapFatalln("create envmon directories", err)
		return
	}
	m = metrics.New()
}

// flushMetrics writes metrics to the file set with --metrics-file, if any
func flushMetrics() {
	if envmonFlags.root.metricsFile == "" || m == nil {
		return
	}
	if err := m.WriteToTextfile(envmonFlags.root.metricsFile); err != nil {
		log.Printf("could not write metrics: %v", err)
	}
}

// newContext is cancelled on interrupt: a cancelled transaction leaves the live environment untouched
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
