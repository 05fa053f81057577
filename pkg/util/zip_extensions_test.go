package util

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

func zipEntries(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestZipExtensionDirectory(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"manifest.json":           `{"name": "test", "version": "1.0"}`,
		"content.js":              "console.log('content');",
		"injected.js":             "console.log('injected');",
		"popup/popup.js":          "console.log('popup');",
		"icons/128/icon.png":      "fake-png-data",
		"node_modules/dep/foo.js": "excluded",
		"content.test.js":         "excluded",
		"content.js.map":          "excluded",
		".DS_Store":               "excluded",
	})

	t.Run("default exclusions", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "out.zip")
		stats, err := ZipExtensionDirectory(src, dest, PackOptions{Verbose: true})
		require.NoError(t, err)

		assert.Equal(t, []string{
			"content.js",
			"icons/",
			"icons/128/",
			"icons/128/icon.png",
			"injected.js",
			"manifest.json",
			"popup/",
			"popup/popup.js",
		}, zipEntries(t, dest))
		assert.Equal(t, 5, stats.FilesIncluded)
		assert.Equal(t, 3, stats.FilesExcluded)

		sort.Strings(stats.ExcludedPaths)
		assert.Equal(t, []string{".DS_Store", "content.js.map", "content.test.js"}, stats.ExcludedPaths)
	})

	t.Run("keep all", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "out.zip")
		stats, err := ZipExtensionDirectory(src, dest, PackOptions{KeepAll: true})
		require.NoError(t, err)

		assert.Equal(t, 9, stats.FilesIncluded)
		assert.Zero(t, stats.FilesExcluded)
		assert.Contains(t, zipEntries(t, dest), "node_modules/dep/foo.js")
	})

	t.Run("archive inside source is skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{"manifest.json": "{}"})
		dest := filepath.Join(dir, "out.bin")
		require.NoError(t, os.WriteFile(dest, []byte("stale"), 0644))

		_, err := ZipExtensionDirectory(dir, dest, PackOptions{KeepAll: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"manifest.json"}, zipEntries(t, dest))
	})
}

func TestPackExclusions(t *testing.T) {
	assert.Subset(t, PackExclusions.Directories, []string{"node_modules", ".git"})
	for _, name := range []string{"a.test.js", "bundle.js.map", "debug.log", "old.zip", ".DS_Store"} {
		assert.True(t, excludedFile(name), name)
	}
	for _, name := range []string{"content.js", "manifest.json", "popup.html"} {
		assert.False(t, excludedFile(name), name)
	}
}
