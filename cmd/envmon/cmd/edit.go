package cmd

import (
	"io"
	"os"

	"github.com/oneconcern/envmon/pkg/core"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Replace the manifest of the environment",
	Long: `Replace the manifest of the environment with the contents of a file.

The environment is changed only if the new manifest builds.`,
	Example: `% envmon edit --file manifest.toml
✅ environment successfully edited`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		contents, err := readContents(envmonFlags.edit.file)
		if err != nil {
			wrapFatalln("read manifest", err)
			return
		}
		env, err := openEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		result, err := env.Edit(ctx, contents)
		if err != nil {
			wrapFatalln("edit", err)
			return
		}
		switch result.Kind {
		case core.Unchanged:
			infoLogger.Printf("%s no changes", warning())
		case core.ReActivateRequired:
			infoLogger.Printf("%s environment successfully edited: re-activate it to apply the changes", success())
		default:
			infoLogger.Printf("%s environment successfully edited", success())
		}
	},
}

func readContents(file string) (string, error) {
	if file == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(file)
	return string(b), err
}

func init() {
	requireFlags(editCmd, addEditFileFlag(editCmd))
	rootCmd.AddCommand(editCmd)
}
