package util

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/boyter/gocodewalker"
)

// PackExclusions are dropped from an extension archive unless disabled.
// Directories are matched by exact name, files by filepath.Match pattern.
var PackExclusions = struct {
	Directories []string
	Files       []string
}{
	Directories: []string{
		"node_modules",
		".git",
		"__tests__",
		"coverage",
		"dist",
	},
	Files: []string{
		"*.test.js",
		"*.spec.js",
		"*.map",
		"*.log",
		"*.swp",
		"*.zip",
		".DS_Store",
		".env",
	},
}

// PackOptions configures ZipExtensionDirectory.
type PackOptions struct {
	// KeepAll disables PackExclusions.
	KeepAll bool
	// Verbose records each excluded file in PackStats.ExcludedPaths.
	Verbose bool
}

// PackStats summarizes an archive.
type PackStats struct {
	FilesIncluded int
	FilesExcluded int
	BytesIncluded int64
	BytesExcluded int64
	ExcludedPaths []string
}

func (s *PackStats) excluded(rel string, size int64, verbose bool) {
	s.FilesExcluded++
	s.BytesExcluded += size
	if verbose {
		s.ExcludedPaths = append(s.ExcludedPaths, rel)
	}
}

func excludedFile(name string) bool {
	for _, pattern := range PackExclusions.Files {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// ZipExtensionDirectory writes the files under srcDir to destZip with paths
// relative to srcDir. Entries are written in sorted path order.
// .gitignore and .ignore rules in srcDir are honoured.
func ZipExtensionDirectory(srcDir, destZip string, opts PackOptions) (*PackStats, error) {
	srcDir = filepath.Clean(srcDir)
	absDest, err := filepath.Abs(destZip)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", destZip, err)
	}

	queue := make(chan *gocodewalker.File, 256)
	walker := gocodewalker.NewFileWalker(srcDir, queue)
	walker.IncludeHidden = true
	if !opts.KeepAll {
		walker.ExcludeDirectory = append(walker.ExcludeDirectory, PackExclusions.Directories...)
	}
	walkErr := make(chan error, 1)
	go func() { walkErr <- walker.Start() }()

	stats := &PackStats{}
	var (
		files  []string
		relErr error
	)
	// The queue is drained fully so the walker goroutine always finishes.
	for f := range queue {
		if abs, err := filepath.Abs(f.Location); err == nil && abs == absDest {
			continue
		}
		rel, err := filepath.Rel(srcDir, f.Location)
		if err != nil {
			relErr = fmt.Errorf("failed to relativize %s: %w", f.Location, err)
			continue
		}
		rel = filepath.ToSlash(rel)
		if !opts.KeepAll && excludedFile(f.Filename) {
			var size int64
			if info, err := os.Lstat(f.Location); err == nil {
				size = info.Size()
			}
			stats.excluded(rel, size, opts.Verbose)
			continue
		}
		files = append(files, rel)
	}
	if err := <-walkErr; err != nil {
		return nil, fmt.Errorf("directory walk failed: %w", err)
	}
	if relErr != nil {
		return nil, relErr
	}
	sort.Strings(files)

	out, err := os.Create(destZip)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destZip, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	dirs := make(map[string]struct{})
	for _, rel := range files {
		if err := addParents(zw, dirs, path.Dir(rel)); err != nil {
			return nil, err
		}
		n, err := addFile(zw, filepath.Join(srcDir, filepath.FromSlash(rel)), rel)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", rel, err)
		}
		stats.FilesIncluded++
		stats.BytesIncluded += n
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish %s: %w", destZip, err)
	}
	return stats, nil
}

func addParents(zw *zip.Writer, seen map[string]struct{}, dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, ok := seen[dir]; ok {
		return nil
	}
	if err := addParents(zw, seen, path.Dir(dir)); err != nil {
		return err
	}
	if _, err := zw.Create(dir + "/"); err != nil {
		return fmt.Errorf("failed to add directory %s: %w", dir, err)
	}
	seen[dir] = struct{}{}
	return nil
}

func addFile(zw *zip.Writer, src, name string) (int64, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return 0, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return 0, err
		}
		hdr := &zip.FileHeader{Name: name, Method: zip.Store}
		hdr.SetMode(os.ModeSymlink | 0777)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return 0, err
		}
		n, err := io.WriteString(w, target)
		return int64(n), err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}
