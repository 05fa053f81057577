package cmd

import (
	"fmt"
	"strings"

	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open [graph-hash]",
	Short: "Open the Desmos calculator in the default browser",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func calculatorURL(hash string) string {
	u := getCalculatorURL()
	if hash = strings.Trim(hash, "/ "); hash != "" {
		u += "/" + hash
	}
	return u
}

func runOpen(cmd *cobra.Command, args []string) error {
	var hash string
	if len(args) == 1 {
		hash = args[0]
	}
	u := calculatorURL(hash)
	pterm.Info.Printf("Opening %s\n", u)
	if err := browser.OpenURL(u); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
