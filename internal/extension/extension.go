// Package extension reads the browser extension's manifest and packages the
// extension directory for store upload.
package extension

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"
	"github.com/desmos-typeset/cli/pkg/util"
)

const (
	// ManifestFile is the manifest's name inside the extension directory.
	ManifestFile = "manifest.json"

	// DefaultName is used for archive names when the manifest name is
	// localized (__MSG_...__) or empty.
	DefaultName = "desmos-typeset"
)

// ErrNoManifest is returned when a directory has no manifest.json.
var ErrNoManifest = errors.New("manifest.json not found")

// Manifest holds the manifest fields the packer needs.
type Manifest struct {
	ManifestVersion int    `json:"manifest_version"`
	Name            string `json:"name"`
	Version         string `json:"version"`
	Description     string `json:"description,omitempty"`
}

// ReadManifest loads and validates dir/manifest.json.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.ManifestVersion != 2 && m.ManifestVersion != 3 {
		return nil, fmt.Errorf("unsupported manifest_version %d", m.ManifestVersion)
	}
	if _, err := m.SemVer(); err != nil {
		return nil, err
	}
	return &m, nil
}

// SemVer parses the manifest version. Browser versions allow one to three
// dot-separated numbers here.
func (m *Manifest) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest version %q: %w", m.Version, err)
	}
	if v.Prerelease() != "" || v.Metadata() != "" {
		return nil, fmt.Errorf("invalid manifest version %q: prerelease and build metadata are not allowed", m.Version)
	}
	return v, nil
}

// ArchiveName is "<slug>-v<version>.zip".
func (m *Manifest) ArchiveName() string {
	name := m.Name
	if name == "" || strings.HasPrefix(name, "__MSG_") {
		name = DefaultName
	}
	return fmt.Sprintf("%s-v%s.zip", slug(name), m.Version)
}

func slug(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return DefaultName
	}
	return strings.Join(fields, "-")
}

// PackOptions configures Pack.
type PackOptions struct {
	// Output is the archive path. Empty means ArchiveName() in the
	// current directory.
	Output string
	// KeepAll disables the development-file exclusions.
	KeepAll bool
	Verbose bool
}

// PackResult describes a written archive.
type PackResult struct {
	Output   string
	Manifest *Manifest
	Stats    *util.PackStats
}

// Pack validates dir's manifest and zips the directory.
func Pack(dir string, opts PackOptions) (*PackResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat extension directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == "" {
		out = m.ArchiveName()
	}
	stats, err := util.ZipExtensionDirectory(dir, out, util.PackOptions{
		KeepAll: opts.KeepAll,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack extension: %w", err)
	}
	return &PackResult{Output: out, Manifest: m, Stats: stats}, nil
}
