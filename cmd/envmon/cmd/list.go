package cmd

import (
	"time"

	"github.com/docker/go-units"
	"github.com/oneconcern/envmon/pkg/managed"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the managed environments opened on this machine",
	Long: `List the working copies of managed environments opened on this machine.

Working copies which were moved or removed without envmon delete are reported as missing.`,
	Example: `% envmon list
owner/name  /home/me/project/.flox  opened 2 days ago`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		copies, err := managed.WorkingCopies(ctx, cfg)
		if err != nil {
			wrapFatalln("list working copies", err)
			return
		}
		now := time.Now()
		for _, wc := range copies {
			opened := "opened " + units.HumanDuration(now.Sub(wc.Registered)) + " ago"
			if wc.Pointer.Name == "" {
				infoLogger.Printf("%s %s  %s  %s", warning(), "missing", wc.Path, opened)
				continue
			}
			infoLogger.Printf("%s  %s  %s", wc.Pointer, wc.Path, opened)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
