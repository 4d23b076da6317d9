// Package config holds the process-wide settings of envmon as an explicit value.
//
// A Config is built once (by the CLI from viper, or by tests with isolated
// temporary roots) and handed to every component constructor. Library packages
// never read environment variables or global state.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultGitBinary is the git executable looked up on PATH
	DefaultGitBinary = "git"

	// DefaultBuildBackend is the executable of the build backend looked up on PATH
	DefaultBuildBackend = "pkgdb"

	// DefaultUpstream is the base URL for upstream environment repositories
	DefaultUpstream = "https://git.hub.flox.dev"
)

// Config describes the settings shared by all components.
type Config struct {
	// TempDir is the root for transaction sandboxes and private clones
	TempDir string `json:"temp_dir" yaml:"temp_dir" validate:"required"`

	// DataDir holds persistent state: the per-owner generation repositories and the links registry
	DataDir string `json:"data_dir" yaml:"data_dir" validate:"required"`

	// CacheDir holds out-links to built environments
	CacheDir string `json:"cache_dir" yaml:"cache_dir" validate:"required"`

	// System identifies the platform environments are built for, e.g. x86_64-linux
	System string `json:"system" yaml:"system" validate:"required"`

	// GitBinary is the path to the git executable
	GitBinary string `json:"git" yaml:"git" validate:"required"`

	// BuildBackend is the path to the build backend executable
	BuildBackend string `json:"build_backend" yaml:"build_backend" validate:"required"`

	// GlobalManifest is the shared default resolution base used when no lock exists yet
	GlobalManifest string `json:"global_manifest,omitempty" yaml:"global_manifest,omitempty"`

	// Upstream is the base URL of upstream environment repositories: <upstream>/<owner>/floxmeta
	Upstream string `json:"upstream" yaml:"upstream" validate:"required"`

	// LogLevel for the zap logger
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error none"`
}

// Default builds a configuration rooted in the user's home directory.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return &Config{
		TempDir:        os.TempDir(),
		DataDir:        filepath.Join(home, ".local", "share", "envmon"),
		CacheDir:       filepath.Join(home, ".cache", "envmon"),
		System:         CurrentSystem(),
		GitBinary:      DefaultGitBinary,
		BuildBackend:   DefaultBuildBackend,
		GlobalManifest: filepath.Join(home, ".config", "envmon", "global-manifest.toml"),
		Upstream:       DefaultUpstream,
		LogLevel:       "info",
	}
}

// ForTest builds a configuration with all directories isolated under root.
func ForTest(root string) *Config {
	return &Config{
		TempDir:      filepath.Join(root, "tmp"),
		DataDir:      filepath.Join(root, "data"),
		CacheDir:     filepath.Join(root, "cache"),
		System:       CurrentSystem(),
		GitBinary:    DefaultGitBinary,
		BuildBackend: DefaultBuildBackend,
		Upstream:     filepath.Join(root, "upstream"),
		LogLevel:     "none",
	}
}

// Validate the configuration
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// EnsureDirs creates the directories this configuration refers to.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.TempDir, c.DataDir, c.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// MetaDir is the location of the generations repository cloned for some owner.
func (c *Config) MetaDir(owner string) string {
	return filepath.Join(c.DataDir, "meta", owner)
}

// LinksDir is the location of the reverse-link registry.
func (c *Config) LinksDir() string {
	return filepath.Join(c.DataDir, "links")
}

// RunDir is the directory holding out-links of managed environments for some owner.
func (c *Config) RunDir(owner string) string {
	return filepath.Join(c.CacheDir, "run", owner)
}

// UpstreamURL is the remote repository holding the environments of some owner.
func (c *Config) UpstreamURL(owner string) string {
	return c.Upstream + "/" + owner + "/floxmeta"
}

// CurrentSystem yields the system double for the running process, e.g. aarch64-darwin.
func CurrentSystem() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	return arch + "-" + runtime.GOOS
}
