package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/desmos-typeset/cli/internal/settings"
	"github.com/desmos-typeset/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// SettingsStore is the part of settings.Store the settings commands use.
type SettingsStore interface {
	Path() string
	Load() settings.Values
	Get(id string) (any, error)
	Set(id, raw string) (any, error)
	Reset() error
}

type SettingsCmd struct {
	store SettingsStore
	out   io.Writer
}

type SettingsListInput struct {
	Category string
	Output   string
}

type SettingsGetInput struct {
	Key    string
	Output string
}

type SettingsSetInput struct {
	Key    string
	Value  string
	Output string
}

var categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2d70b3"))

func (s SettingsCmd) List(in SettingsListInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}
	if in.Category != "" && !lo.ContainsBy(settings.Schema, func(c settings.Category) bool { return c.ID == in.Category }) {
		return fmt.Errorf("unknown category %q", in.Category)
	}

	values := s.store.Load()
	fields := lo.Filter(settings.Fields(), func(f settings.Field, _ int) bool {
		return in.Category == "" || f.Category == in.Category
	})

	if in.Output == "json" {
		return util.PrintJSON(s.out, lo.SliceToMap(fields, func(f settings.Field) (string, any) {
			return f.ID, values[f.ID]
		}))
	}

	for _, cat := range settings.Schema {
		catFields := lo.Filter(fields, func(f settings.Field, _ int) bool { return f.Category == cat.ID })
		if len(catFields) == 0 {
			continue
		}
		fmt.Fprintln(s.out, categoryStyle.Render(cat.Title))

		rows := pterm.TableData{{"Key", "Value", "Default", "Parent"}}
		for _, f := range catFields {
			val := fmt.Sprint(values[f.ID])
			if val != fmt.Sprint(f.Default) {
				val = pterm.Bold.Sprint(val)
			}
			rows = append(rows, []string{f.ID, val, fmt.Sprint(f.Default), util.OrDash(f.Parent)})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithWriter(s.out).WithData(rows).Render(); err != nil {
			return err
		}
		fmt.Fprintln(s.out)
	}
	pterm.Info.WithWriter(s.out).Printf("Settings file: %s\n", s.store.Path())
	return nil
}

func (s SettingsCmd) Get(in SettingsGetInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}
	val, err := s.store.Get(in.Key)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return util.PrintJSON(s.out, map[string]any{in.Key: val})
	}
	fmt.Fprintln(s.out, val)
	return nil
}

func (s SettingsCmd) Set(in SettingsSetInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}
	val, err := s.store.Set(in.Key, in.Value)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return util.PrintJSON(s.out, map[string]any{in.Key: val})
	}
	pterm.Success.WithWriter(s.out).Printf("Set %s = %v\n", in.Key, val)

	// A detail field has no effect while its toggle is off.
	if f, err := settings.Lookup(in.Key); err == nil && f.Parent != "" {
		if !s.store.Load().Bool(f.Parent) {
			pterm.Warning.WithWriter(s.out).Printf("%s is off; enable it with: desmos settings set %s true\n", f.Parent, f.Parent)
		}
	}
	return nil
}

func (s SettingsCmd) Reset() error {
	if err := s.store.Reset(); err != nil {
		return err
	}
	pterm.Success.WithWriter(s.out).Println("Settings reset to defaults")
	return nil
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage desmos-typeset settings",
	Long: `Manage desmos-typeset settings.

Settings live in a JSON file ($DESMOS_SETTINGS_FILE, or settings.json under
the user config directory). Keys missing from the file read as their
defaults.`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings with their current and default values",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Example: `  desmos settings set uprightSubscript true
  desmos settings set commaWithSpaceMargin 0.25
  desmos settings set customBackgroundColor '#eef3fb'`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore every setting to its default",
	Args:  cobra.NoArgs,
	RunE:  runSettingsReset,
}

func init() {
	settingsCmd.PersistentFlags().String("file", "", "Settings file (default $DESMOS_SETTINGS_FILE or the user config directory)")
	settingsListCmd.Flags().String("category", "", "Only list one category (expression, ui)")
	for _, c := range []*cobra.Command{settingsListCmd, settingsGetCmd, settingsSetCmd} {
		c.Flags().StringP("output", "o", "", "Output format (json)")
	}
	settingsCmd.AddCommand(settingsListCmd, settingsGetCmd, settingsSetCmd, settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func openSettingsStore(cmd *cobra.Command) (*settings.Store, error) {
	file, _ := cmd.Flags().GetString("file")
	path, err := getSettingsPath(file)
	if err != nil {
		return nil, err
	}
	return settings.Open(path)
}

func newSettingsCmd(cmd *cobra.Command) (SettingsCmd, error) {
	store, err := openSettingsStore(cmd)
	if err != nil {
		return SettingsCmd{}, err
	}
	return SettingsCmd{store: store, out: os.Stdout}, nil
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	s, err := newSettingsCmd(cmd)
	if err != nil {
		return err
	}
	category, _ := cmd.Flags().GetString("category")
	output, _ := cmd.Flags().GetString("output")
	return s.List(SettingsListInput{Category: category, Output: output})
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	s, err := newSettingsCmd(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	return s.Get(SettingsGetInput{Key: args[0], Output: output})
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	s, err := newSettingsCmd(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	return s.Set(SettingsSetInput{Key: args[0], Value: args[1], Output: output})
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	s, err := newSettingsCmd(cmd)
	if err != nil {
		return err
	}
	return s.Reset()
}
