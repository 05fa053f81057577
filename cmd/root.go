package cmd

import (
	"github.com/desmos-typeset/cli/pkg/util"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "desmos",
	Short: "Read and write Desmos expressions and manage desmos-typeset settings",
	Long: `desmos is the companion CLI for the desmos-typeset extension.

It reads and writes expression LaTeX in a live Desmos calculator (over the
Chrome DevTools protocol) or in a saved graph state file, manages the
extension's settings, renders and injects the settings stylesheet, and
packages the extension for upload.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		util.SetDebug(debug)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// Root returns the root command with every subcommand registered.
func Root() *cobra.Command {
	return rootCmd
}
