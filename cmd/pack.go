package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/desmos-typeset/cli/internal/extension"
	"github.com/desmos-typeset/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type PackCmd struct {
	out io.Writer
}

type PackInput struct {
	Dir     string
	Output  string
	KeepAll bool
	Verbose bool
	Format  string
}

type packSummary struct {
	Archive       string   `json:"archive"`
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	FilesIncluded int      `json:"files_included"`
	FilesExcluded int      `json:"files_excluded"`
	BytesIncluded int64    `json:"bytes_included"`
	ExcludedPaths []string `json:"excluded_paths,omitempty"`
}

func (p PackCmd) Pack(in PackInput) error {
	if err := validateOutput(in.Format); err != nil {
		return err
	}
	if in.Format != "json" {
		pterm.Info.WithWriter(p.out).Printf("Packing %s...\n", in.Dir)
	}

	res, err := extension.Pack(in.Dir, extension.PackOptions{
		Output:  in.Output,
		KeepAll: in.KeepAll,
		Verbose: in.Verbose,
	})
	if err != nil {
		return err
	}

	if in.Format == "json" {
		return util.PrintJSON(p.out, packSummary{
			Archive:       res.Output,
			Name:          res.Manifest.Name,
			Version:       res.Manifest.Version,
			FilesIncluded: res.Stats.FilesIncluded,
			FilesExcluded: res.Stats.FilesExcluded,
			BytesIncluded: res.Stats.BytesIncluded,
			ExcludedPaths: res.Stats.ExcludedPaths,
		})
	}

	rows := pterm.TableData{
		{"Property", "Value"},
		{"Archive", res.Output},
		{"Extension", util.OrDash(res.Manifest.Name)},
		{"Version", res.Manifest.Version},
		{"Files", fmt.Sprintf("%d (%s)", res.Stats.FilesIncluded, util.FormatBytes(res.Stats.BytesIncluded))},
		{"Excluded", fmt.Sprintf("%d (%s)", res.Stats.FilesExcluded, util.FormatBytes(res.Stats.BytesExcluded))},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(p.out).WithData(rows).Render(); err != nil {
		return err
	}
	for _, excluded := range res.Stats.ExcludedPaths {
		pterm.Info.WithWriter(p.out).Printf("Excluded %s\n", excluded)
	}
	pterm.Success.WithWriter(p.out).Printf("Wrote %s\n", res.Output)
	return nil
}

var packCmd = &cobra.Command{
	Use:   "pack <extension-dir>",
	Short: "Zip the extension directory for store upload",
	Long: `Zip the extension directory for store upload.

The manifest is validated first. Development files (node_modules, .git,
tests, source maps, logs) are left out unless --all is given. The archive
is named after the manifest name and version unless -o is given.`,
	Example: `  desmos pack ./chrome
  desmos pack ./firefox -o dist/firefox.zip`,
	Args: cobra.ExactArgs(1),
	RunE: runPack,
}

func init() {
	packCmd.Flags().StringP("out", "o", "", "Archive path (default <name>-v<version>.zip)")
	packCmd.Flags().Bool("all", false, "Keep development files")
	packCmd.Flags().BoolP("verbose", "v", false, "List excluded files")
	packCmd.Flags().String("format", "", "Output format (json)")
	rootCmd.AddCommand(packCmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	all, _ := cmd.Flags().GetBool("all")
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("format")

	p := PackCmd{out: os.Stdout}
	return p.Pack(PackInput{
		Dir:     args[0],
		Output:  out,
		KeepAll: all,
		Verbose: verbose,
		Format:  format,
	})
}
