package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/oneconcern/envmon/pkg/generations"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/spf13/cobra"
)

// generationsCmd represents the generations related commands
var generationsCmd = &cobra.Command{
	Use:   "generations",
	Short: "Commands to manage the generations of a managed environment",
	Long: `Commands to manage the generations of a managed environment.

Every change to a managed environment is recorded as a new numbered generation.
Switching to an older generation rolls changes back, switching to a newer one rolls them forward.`,
}

func formatGeneration(entry generations.HistoryEntry, now time.Time) string {
	marker := " "
	if entry.Current {
		marker = "*"
	}
	line := fmt.Sprintf("%s %3s  %-16s %s", marker, entry.ID, units.HumanDuration(now.Sub(entry.Created.Time))+" ago", entry.Description)
	if entry.Current {
		return currentColor(line)
	}
	return line
}

var generationsList = &cobra.Command{
	Use:   "list",
	Short: "List generations",
	Example: `% envmon generations list
  1  2 hours ago      Add first generation
* 2  About a minute ago installed packages: ["curl"]`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		env, err := openManagedEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		history, err := env.Generations().History(ctx)
		if err != nil {
			wrapFatalln("list generations", err)
			return
		}
		now := time.Now()
		for _, entry := range history {
			infoLogger.Println(formatGeneration(entry, now))
		}
	},
}

var generationsSwitch = &cobra.Command{
	Use:     "switch <generation>",
	Aliases: []string{"rollback"},
	Short:   "Make a generation current",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		id, err := model.ParseGenerationID(args[0])
		if err != nil {
			wrapFatalln("invalid generation", err)
			return
		}
		env, err := openManagedEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		if err = env.SwitchGeneration(ctx, id); err != nil {
			wrapFatalln("switch generation", err)
			return
		}
		infoLogger.Printf("%s switched to generation %s", success(), id)
	},
}

var generationsDiff = &cobra.Command{
	Use:   "diff <from> <to>",
	Short: "Show the changes to the manifest between two generations",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		ids := make([]model.GenerationID, 0, len(args))
		for _, arg := range args {
			id, err := model.ParseGenerationID(arg)
			if err != nil {
				wrapFatalln("invalid generation", err)
				return
			}
			ids = append(ids, id)
		}
		env, err := openManagedEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		diff, err := env.Generations().Diff(ctx, ids[0], ids[1])
		if err != nil {
			wrapFatalln("diff generations", err)
			return
		}
		infoLogger.Print(strings.TrimSuffix(diff, "\n"))
	},
}

func init() {
	generationsCmd.AddCommand(generationsList)
	generationsCmd.AddCommand(generationsSwitch)
	generationsCmd.AddCommand(generationsDiff)
	rootCmd.AddCommand(generationsCmd)
}
