package cmd

import (
	"sort"

	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [<install id or group>...]",
	Short: "Upgrade packages",
	Long: `Upgrade packages to the latest versions allowed by the manifest.

Packages are selected by install id or group. All packages are upgraded when none is selected.
A package sharing its group with other packages can only be upgraded with its whole group.`,
	Example: `% envmon upgrade curl
✅ upgraded 'curl' (x86_64-linux): 8.4.0 -> 8.5.0`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		env, err := openEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		result, err := env.Upgrade(ctx, args, envmonFlags.upgrade.dryRun)
		if err != nil {
			wrapFatalln("upgrade", err)
			return
		}

		diff := result.Diff()
		if diff.Len() == 0 {
			infoLogger.Printf("%s no packages need to be upgraded", warning())
			return
		}
		verb := "upgraded"
		if result.DryRun {
			verb = "would upgrade"
		}
		ids := make([]string, 0, len(diff))
		for id := range diff {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			systems := make([]string, 0, len(diff[id]))
			for system := range diff[id] {
				systems = append(systems, system)
			}
			sort.Strings(systems)
			for _, system := range systems {
				change := diff[id][system]
				infoLogger.Printf("%s %s '%s' (%s): %s -> %s", success(), verb, id, system, change.Old.Version, change.New.Version)
			}
		}
	},
}

func init() {
	addDryRunFlag(upgradeCmd)
	rootCmd.AddCommand(upgradeCmd)
}
