// Copyright © 2018 One Concern

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const (
	bash = "bash"
	zsh  = "zsh"
	fish = "fish"
)

// completionCmd represents the completion command
var completionCmd = &cobra.Command{
	Use:   "completion SHELL",
	Short: "generate completions for the envmon command",
	Long: `Generate completions for your shell

	For bash add the following line to your ~/.bashrc

		eval "$(envmon completion bash)"

	For zsh generate a file:

		envmon completion zsh > /usr/local/share/zsh/site-functions/_envmon

	`,
	ValidArgs: []string{bash, zsh, fish},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),

	Run: func(cmd *cobra.Command, args []string) {
		var err error
		switch args[0] {
		case bash:
			err = rootCmd.GenBashCompletion(os.Stdout)
		case zsh:
			err = rootCmd.GenZshCompletion(os.Stdout)
		case fish:
			err = rootCmd.GenFishCompletion(os.Stdout, true)
		}
		if err != nil {
			wrapFatalln("failed to generate "+args[0]+" completion", err)
		}
	},
}

func init() {
	completionCmd.Hidden = true
	rootCmd.AddCommand(completionCmd)
}
