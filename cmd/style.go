package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/desmos-typeset/cli/internal/cdp"
	"github.com/desmos-typeset/cli/internal/settings"
	"github.com/desmos-typeset/cli/internal/stylesheet"
	"github.com/desmos-typeset/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// StylesheetApplier injects CSS into a calculator page.
type StylesheetApplier interface {
	ApplyStylesheet(ctx context.Context, css string) error
}

type StyleCmd struct {
	values settings.Values
	// page is nil when the stylesheet is only printed.
	page StylesheetApplier
	out  io.Writer
}

// Run prints the stylesheet, or applies it to the page when one is set.
func (s StyleCmd) Run(ctx context.Context) error {
	css, err := stylesheet.Build(s.values)
	if err != nil {
		return err
	}
	if s.page == nil {
		fmt.Fprint(s.out, css)
		return nil
	}

	if err := s.page.ApplyStylesheet(ctx, css); err != nil {
		return err
	}
	pterm.Success.WithWriter(s.out).Printf("Applied #%s: %s\n", stylesheet.ElementID, util.JoinOrDash(stylesheet.Enabled(s.values)...))
	return nil
}

var styleCmd = &cobra.Command{
	Use:   "style",
	Short: "Print or apply the stylesheet for the current settings",
	Long: `Render the CSS the extension injects for the current settings.

With --apply the CSS is injected into a calculator tab, replacing any
previous stylesheet. The tab stays open until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runStyle,
}

func init() {
	styleCmd.Flags().Bool("apply", false, "Inject the stylesheet into a calculator tab")
	styleCmd.Flags().String("cdp-url", "", "DevTools websocket URL of a running Chrome (default $DESMOS_CDP_URL)")
	styleCmd.Flags().String("file", "", "Settings file (default $DESMOS_SETTINGS_FILE or the user config directory)")
	rootCmd.AddCommand(styleCmd)
}

func runStyle(cmd *cobra.Command, args []string) error {
	store, err := openSettingsStore(cmd)
	if err != nil {
		return err
	}
	s := StyleCmd{values: store.Load(), out: os.Stdout}

	apply, _ := cmd.Flags().GetBool("apply")
	if !apply {
		return s.Run(cmd.Context())
	}

	cdpURL, _ := cmd.Flags().GetString("cdp-url")
	session, err := cdp.Open(cmd.Context(), cdp.Options{
		CalculatorURL: getCalculatorURL(),
		RemoteURL:     getCDPURL(cdpURL),
		Logger:        util.NewLogger(),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	s.page = session
	if err := s.Run(cmd.Context()); err != nil {
		return err
	}
	pterm.Info.Println("Press Ctrl+C to close the calculator")
	<-cmd.Context().Done()
	return nil
}
