package cmd

import (
	"time"

	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/managed"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty environment",
	Long:  "Create an empty environment in the project directory. It is built on the first change.",
	Example: `% envmon init
✅ created environment in .flox/env`,
	Run: func(cmd *cobra.Command, args []string) {
		if managed.IsManaged(envmonFlags.root.dir) {
			wrapFatalln("a managed environment already exists in "+envmonFlags.root.dir, nil)
			return
		}
		defer m.Since("init", time.Now())
		if _, err := core.Init(pathEnvDir(), "", coreOptions()...); err != nil {
			wrapFatalln("create environment", err)
			return
		}
		infoLogger.Printf("%s created environment in %s", success(), pathEnvDir())
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
