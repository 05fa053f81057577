// Package settings holds the extension's declarative settings schema and a
// key-value store for the values.
package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/samber/lo"
)

// ErrUnknownKey is returned for keys the schema does not declare.
var ErrUnknownKey = errors.New("unknown setting")

// FieldType is how a field is edited in the popup.
type FieldType string

const (
	TypeToggle   FieldType = "toggle"
	TypeSelect   FieldType = "select"
	TypeCheckbox FieldType = "checkbox"
	TypeColor    FieldType = "color"
)

// Option is one choice of a select field.
type Option struct {
	Value any
	Label string
}

// Detail is a sub-field shown under a toggle.
type Detail struct {
	ID      string
	Label   string
	Type    FieldType
	Options []Option
	Default any
	Warning string
}

// Setting is one top-level toggle.
type Setting struct {
	ID          string
	Title       string
	Description string
	Type        FieldType
	Default     any
	Details     []Detail
}

// Category groups settings in the popup.
type Category struct {
	ID       string
	Title    string
	Settings []Setting
}

func minCharsOptions() []Option {
	return []Option{{Value: 1, Label: "1+ chars"}, {Value: 2, Label: "2+ chars"}}
}

// Schema is the full settings declaration, in popup order.
var Schema = []Category{
	{
		ID:    "expression",
		Title: "Expression",
		Settings: []Setting{
			{
				ID:          "uprightSubscript",
				Title:       "Upright subscripts",
				Description: "Display subscripts in upright style",
				Type:        TypeToggle,
				Default:     false,
				Details: []Detail{
					{ID: "uprightSubscriptMinChars", Label: "Min chars", Type: TypeSelect, Options: minCharsOptions(), Default: 2},
				},
			},
			{
				ID:          "normalSizeSubscript",
				Title:       "Normal size subscripts",
				Description: "Display subscripts at normal font size",
				Type:        TypeToggle,
				Default:     false,
				Details: []Detail{
					{ID: "normalSizeSubscriptMinChars", Label: "Min chars", Type: TypeSelect, Options: minCharsOptions(), Default: 2},
					{
						ID:      "normalSizeSubscriptApplyWhileEditing",
						Label:   "Apply while editing",
						Type:    TypeCheckbox,
						Default: false,
						Warning: "Enabling this may interfere with input",
					},
				},
			},
			{
				ID:          "colonWithSpace",
				Title:       "Colon with space",
				Description: "Add spacing after colons",
				Type:        TypeToggle,
				Default:     false,
				Details: []Detail{
					{
						ID:    "colonWithSpaceWidth",
						Label: "Width",
						Type:  TypeSelect,
						Options: []Option{
							{Value: 400, Label: "400"},
							{Value: 500, Label: "500"},
							{Value: 600, Label: "600"},
						},
						Default: 500,
					},
				},
			},
			{
				ID:          "commaWithSpace",
				Title:       "Comma with space",
				Description: "Add spacing after commas",
				Type:        TypeToggle,
				Default:     false,
				Details: []Detail{
					{
						ID:    "commaWithSpaceMargin",
						Label: "Margin",
						Type:  TypeSelect,
						Options: lo.Map([]float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.4}, func(v float64, _ int) Option {
							return Option{Value: v, Label: strconv.FormatFloat(v, 'f', -1, 64) + "em"}
						}),
						Default: 0.2,
					},
				},
			},
			{
				ID:          "displayStyleIntegrals",
				Title:       "Display style integrals",
				Description: "Integrals in display style",
				Type:        TypeToggle,
				Default:     true,
			},
			{
				ID:          "enhancedParentheses",
				Title:       "Enhanced parentheses",
				Description: "Improve the appearance of parentheses",
				Type:        TypeToggle,
				Default:     false,
				Details: []Detail{
					{
						ID:    "enhancedParenthesesThickness",
						Label: "Thickness",
						Type:  TypeSelect,
						Options: []Option{
							{Value: "normal", Label: "Normal"},
							{Value: "thin", Label: "Thin"},
						},
						Default: "normal",
					},
				},
			},
		},
	},
	{
		ID:    "ui",
		Title: "UI",
		Settings: []Setting{
			{
				ID:          "transparentIcons",
				Title:       "Transparent icons",
				Description: "Make UI icons and buttons transparent with blur effect",
				Type:        TypeToggle,
				Default:     false,
			},
			{
				ID:          "compactHeader",
				Title:       "Compact header",
				Description: "Make header and UI elements more compact",
				Type:        TypeToggle,
				Default:     false,
			},
			{
				ID:          "customBackground",
				Title:       "Custom background",
				Description: "Change background color of UI elements",
				Type:        TypeToggle,
				Default:     false,
				Details: []Detail{
					{ID: "customBackgroundColor", Label: "Color", Type: TypeColor, Default: "#f6f9fd"},
				},
			},
			{
				ID:          "fullscreenButton",
				Title:       "Fullscreen button",
				Description: "Add a fullscreen button to the header",
				Type:        TypeToggle,
				Default:     false,
			},
		},
	},
}

// Field is a flattened schema entry: a setting or one of its details.
type Field struct {
	ID       string
	Label    string
	Category string
	// Parent is the owning setting's id for details, empty otherwise.
	Parent  string
	Type    FieldType
	Options []Option
	Default any
}

// Fields flattens Schema in declaration order.
func Fields() []Field {
	return lo.FlatMap(Schema, func(c Category, _ int) []Field {
		return lo.FlatMap(c.Settings, func(s Setting, _ int) []Field {
			fields := []Field{{ID: s.ID, Label: s.Title, Category: c.ID, Type: s.Type, Default: s.Default}}
			return append(fields, lo.Map(s.Details, func(d Detail, _ int) Field {
				return Field{
					ID:       d.ID,
					Label:    d.Label,
					Category: c.ID,
					Parent:   s.ID,
					Type:     d.Type,
					Options:  d.Options,
					Default:  d.Default,
				}
			})...)
		})
	})
}

// Defaults returns the default value of every field.
func Defaults() map[string]any {
	return lo.SliceToMap(Fields(), func(f Field) (string, any) {
		return f.ID, f.Default
	})
}

// Lookup finds a field by id.
func Lookup(id string) (Field, error) {
	f, ok := lo.Find(Fields(), func(f Field) bool { return f.ID == id })
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownKey, id)
	}
	return f, nil
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Parse converts a command-line value into the field's value type.
func (f Field) Parse(raw string) (any, error) {
	switch f.Type {
	case TypeToggle, TypeCheckbox:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", f.ID, raw)
		}
		return v, nil
	case TypeSelect:
		opt, ok := lo.Find(f.Options, func(o Option) bool { return fmt.Sprint(o.Value) == raw })
		if !ok {
			choices := lo.Map(f.Options, func(o Option, _ int) string { return fmt.Sprint(o.Value) })
			return nil, fmt.Errorf("%s expects one of %v, got %q", f.ID, choices, raw)
		}
		return opt.Value, nil
	case TypeColor:
		if !colorPattern.MatchString(raw) {
			return nil, fmt.Errorf("%s expects a #rrggbb color, got %q", f.ID, raw)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%s has unsupported type %q", f.ID, f.Type)
}
