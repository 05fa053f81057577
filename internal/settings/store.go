package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Values maps field ids to their current values.
type Values map[string]any

// Bool returns the value of a toggle or checkbox field.
func (v Values) Bool(id string) bool {
	b, _ := v[id].(bool)
	return b
}

// Int returns the value of an integer select field.
func (v Values) Int(id string) int {
	n, _ := v[id].(int)
	return n
}

// Float returns the value of a numeric select field.
func (v Values) Float(id string) float64 {
	f, _ := v[id].(float64)
	return f
}

// String returns the value of a string field.
func (v Values) String(id string) string {
	s, _ := v[id].(string)
	return s
}

// DefaultValues returns every field at its default.
func DefaultValues() Values {
	return Values(Defaults())
}

// Store persists settings to a JSON file. Keys missing from the file read as
// their defaults.
type Store struct {
	path string
	v    *viper.Viper
}

// DefaultPath is settings.json under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "desmos-typeset", "settings.json"), nil
}

// Open loads the settings file at path. A missing file is not an error.
func Open(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	for id, def := range Defaults() {
		v.SetDefault(id, def)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings from %s: %w", path, err)
		}
	}
	return &Store{path: path, v: v}, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns all values, coerced to each field's default type.
func (s *Store) Load() Values {
	return lo.SliceToMap(Fields(), func(f Field) (string, any) {
		return f.ID, s.get(f)
	})
}

// Get returns one value.
func (s *Store) Get(id string) (any, error) {
	f, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	return s.get(f), nil
}

func (s *Store) get(f Field) any {
	switch f.Default.(type) {
	case bool:
		return s.v.GetBool(f.ID)
	case int:
		return s.v.GetInt(f.ID)
	case float64:
		return s.v.GetFloat64(f.ID)
	default:
		return s.v.GetString(f.ID)
	}
}

// Set parses raw for the field and saves it.
func (s *Store) Set(id, raw string) (any, error) {
	f, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	val, err := f.Parse(raw)
	if err != nil {
		return nil, err
	}
	s.v.Set(f.ID, val)
	if err := s.save(); err != nil {
		return nil, err
	}
	return val, nil
}

// Reset restores every field to its default and saves.
func (s *Store) Reset() error {
	for id, def := range Defaults() {
		s.v.Set(id, def)
	}
	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings to %s: %w", s.path, err)
	}
	return nil
}
