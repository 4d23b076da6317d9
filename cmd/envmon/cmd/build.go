package cmd

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the environment",
	Long:  "Lock the environment if needed, then build it. The store path of the build is printed.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		env, err := openEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		storePath, err := env.Build(ctx)
		if err != nil {
			wrapFatalln("build", err)
			return
		}
		infoLogger.Println(storePath)
	},
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Build the environment and link it",
	Long: `Build the environment and point its out-link at the build.

The out-link of a project environment is kept in the project directory, under run/<system>.
The out-link of a managed environment is kept in the cache directory, under run/<owner>/<branch>.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		env, err := openEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		storePath, err := env.Link(ctx)
		if err != nil {
			wrapFatalln("link", err)
			return
		}
		infoLogger.Println(storePath)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(linkCmd)
}
