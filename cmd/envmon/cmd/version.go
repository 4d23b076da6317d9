package cmd

import (
	"runtime"
	"runtime/debug"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/envmon/pkg/vcs"
	"github.com/spf13/cobra"
)

// Version of the release, set with -ldflags "-X github.com/oneconcern/envmon/cmd/envmon/cmd.Version=v1.2.3"
var Version string

// versionInfo describes the envmon binary and the tools it drives
type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
	System    string `json:"system"`
	Git       string `json:"git"`
	Backend   string `json:"backend"`
}

// buildVersionInfo reads the version stamped by the linker, or else by the go tool
func buildVersionInfo() versionInfo {
	ver := versionInfo{
		Version:   "dev",
		GoVersion: runtime.Version(),
		System:    cfg.System,
		Backend:   cfg.BuildBackend,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			ver.Version = v
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				ver.Commit = setting.Value
			case "vcs.modified":
				ver.Modified = setting.Value == "true"
			}
		}
	}
	if Version != "" {
		ver.Version = Version
	}
	return ver
}

func (v versionInfo) String() string {
	var b strings.Builder
	b.WriteString("envmon " + v.Version)
	if v.Commit != "" {
		b.WriteString(" (" + v.Commit)
		if v.Modified {
			b.WriteString(", modified")
		}
		b.WriteString(")")
	}
	b.WriteString("\n")
	for _, line := range [][2]string{
		{"go", v.GoVersion},
		{"system", v.System},
		{"git", v.Git},
		{"backend", v.Backend},
	} {
		b.WriteString(line[0] + ": " + line[1] + "\n")
	}
	return b.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of envmon and of the tools it runs",
	Long: `Print the version of envmon, with the system environments are built for,
the git binary used to sync environments and the build backend.

A git release older than the supported minimum is flagged.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		ver := buildVersionInfo()
		switch git, err := vcs.Version(ctx, gitOptions()...); {
		case err != nil:
			ver.Git = "unavailable"
		case git.LT(vcs.MinVersion):
			ver.Git = git.String() + " (unsupported, " + vcs.MinVersion.String() + " required)"
		default:
			ver.Git = git.String()
		}

		if !envmonFlags.version.json {
			infoLogger.Print(ver.String())
			return
		}
		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(ver, "", "  ")
		if err != nil {
			wrapFatalln("print version", err)
			return
		}
		infoLogger.Println(string(out))
	},
}

func init() {
	addJSONFlag(versionCmd)
	rootCmd.AddCommand(versionCmd)
}
