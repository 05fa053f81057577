package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/desmos-typeset/cli/internal/cdp"
	"github.com/desmos-typeset/cli/pkg/boundary"
	"github.com/desmos-typeset/cli/pkg/bridge"
	"github.com/desmos-typeset/cli/pkg/pageapi"
	"github.com/desmos-typeset/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var errExpressionNotFound = errors.New("expression not found")

// ExpressionBridge is the part of bridge.Bridge the expr commands use.
type ExpressionBridge interface {
	GetExpressionLatex(ctx context.Context, exprID string) (string, bool)
	SetExpressionLatex(ctx context.Context, exprID, latex string) bool
}

type ExprCmd struct {
	bridge ExpressionBridge
	out    io.Writer
}

type ExprGetInput struct {
	ExprID string
	Output string
}

type ExprSetInput struct {
	ExprID string
	Latex  string
	Output string
}

type exprGetResult struct {
	ID    string  `json:"id"`
	Latex *string `json:"latex"`
}

type exprSetResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

func validateOutput(output string) error {
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	return nil
}

// Get prints the expression's LaTeX. A missing expression and a calculator
// that never answers look the same and are both reported as not found.
func (e ExprCmd) Get(ctx context.Context, in ExprGetInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}

	latex, ok := e.bridge.GetExpressionLatex(ctx, in.ExprID)
	if in.Output == "json" {
		res := exprGetResult{ID: in.ExprID}
		if ok {
			res.Latex = &latex
		}
		if err := util.PrintJSON(e.out, res); err != nil {
			return err
		}
	} else if ok {
		fmt.Fprintln(e.out, latex)
	}

	if !ok {
		return fmt.Errorf("%w: %s", errExpressionNotFound, in.ExprID)
	}
	return nil
}

func (e ExprCmd) Set(ctx context.Context, in ExprSetInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}

	ok := e.bridge.SetExpressionLatex(ctx, in.ExprID, in.Latex)
	if in.Output == "json" {
		if err := util.PrintJSON(e.out, exprSetResult{ID: in.ExprID, Success: ok}); err != nil {
			return err
		}
	}
	if !ok {
		return fmt.Errorf("failed to set expression %s: calculator did not accept the write", in.ExprID)
	}
	if in.Output != "json" {
		pterm.Success.WithWriter(e.out).Printf("Updated expression %s\n", in.ExprID)
	}
	return nil
}

// exprTarget is a connected Bridge plus whatever backs it.
type exprTarget struct {
	bridge *bridge.Bridge
	close  func() error
}

// openStateTarget serves a graph state file through a Go page adapter on an
// in-process window. close saves the file if it was modified.
func openStateTarget(ctx context.Context, path string, logger *pterm.Logger) (*exprTarget, error) {
	sf, err := pageapi.OpenStateFile(path)
	if err != nil {
		return nil, err
	}

	w := boundary.NewWindow()
	stopAdapter := pageapi.NewAdapter(pageapi.New(sf, logger), w).Start(ctx)
	b, detach := bridge.Connect(w, bridge.WithLogger(logger))

	return &exprTarget{
		bridge: b,
		close: func() error {
			detach()
			stopAdapter()
			w.Close()
			if !sf.Dirty() {
				return nil
			}
			logger.Debug("saving graph state", logger.Args("path", sf.Path()))
			return sf.Save()
		},
	}, nil
}

func openBrowserTarget(ctx context.Context, opts cdp.Options) (*exprTarget, error) {
	s, err := cdp.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	b, detach := bridge.Connect(s, bridge.WithLogger(opts.Logger))
	return &exprTarget{
		bridge: b,
		close: func() error {
			detach()
			s.Close()
			return nil
		},
	}, nil
}

func openExprTarget(cmd *cobra.Command) (*exprTarget, error) {
	logger := util.NewLogger()
	state, _ := cmd.Flags().GetString("state")
	if state != "" {
		return openStateTarget(cmd.Context(), state, logger)
	}

	cdpURL, _ := cmd.Flags().GetString("cdp-url")
	headless, _ := cmd.Flags().GetBool("headless")
	return openBrowserTarget(cmd.Context(), cdp.Options{
		CalculatorURL: getCalculatorURL(),
		RemoteURL:     getCDPURL(cdpURL),
		Headless:      headless,
		Logger:        logger,
	})
}

var exprCmd = &cobra.Command{
	Use:   "expr",
	Short: "Read and write expression LaTeX",
	Long: `Read and write the LaTeX of a calculator expression.

By default a Chrome instance is launched on the Desmos calculator. Use
--cdp-url (or DESMOS_CDP_URL) to attach to a running Chrome started with
--remote-debugging-port, or --state to work on a saved graph state file.`,
}

var exprGetCmd = &cobra.Command{
	Use:   "get <expr-id>",
	Short: "Print an expression's LaTeX",
	Example: `  desmos expr get 3 --state graph.json
  desmos expr get 3 --cdp-url ws://127.0.0.1:9222/devtools/browser/<id> -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runExprGet,
}

var exprSetCmd = &cobra.Command{
	Use:     "set <expr-id> <latex>",
	Short:   "Replace an expression's LaTeX",
	Example: `  desmos expr set 3 'y=\sin(x)' --state graph.json`,
	Args:    cobra.ExactArgs(2),
	RunE:    runExprSet,
}

func init() {
	for _, c := range []*cobra.Command{exprGetCmd, exprSetCmd} {
		c.Flags().String("state", "", "Graph state JSON file to read and write instead of a live calculator")
		c.Flags().String("cdp-url", "", "DevTools websocket URL of a running Chrome (default $DESMOS_CDP_URL)")
		c.Flags().Bool("headless", true, "Run a launched Chrome without a window")
		c.Flags().StringP("output", "o", "", "Output format (json)")
		c.MarkFlagsMutuallyExclusive("state", "cdp-url")
		exprCmd.AddCommand(c)
	}
	rootCmd.AddCommand(exprCmd)
}

func runExprGet(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}

	target, err := openExprTarget(cmd)
	if err != nil {
		return err
	}
	e := ExprCmd{bridge: target.bridge, out: os.Stdout}
	runErr := e.Get(cmd.Context(), ExprGetInput{ExprID: args[0], Output: output})
	return errors.Join(runErr, target.close())
}

func runExprSet(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}

	target, err := openExprTarget(cmd)
	if err != nil {
		return err
	}
	e := ExprCmd{bridge: target.bridge, out: os.Stdout}
	runErr := e.Set(cmd.Context(), ExprSetInput{ExprID: args[0], Latex: args[1], Output: output})
	return errors.Join(runErr, target.close())
}
