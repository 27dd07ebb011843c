// Package library builds the item list for a folder and carries out the
// culling actions on disk.
package library

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/ghyeongl/photocull/logging"
)

// DefaultExtensions are scanned when none are configured.
var DefaultExtensions = []string{".jpg", ".jpeg"}

// ErrNoImages is returned by Scan when the folder has no matching files.
var ErrNoImages = fmt.Errorf("no images found")

func sub(component string) *slog.Logger { return logging.Sub(component) }

// Scan lists the images directly inside dir whose extension matches exts
// (case-insensitive), in natural order. Hidden files and subdirectories,
// including edit/ and bin/, are skipped.
func Scan(fs afero.Fs, dir string, exts []string) ([]string, error) {
	l := sub("scanner")
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	exts = lo.Map(exts, func(e string, _ int) string { return normalizeExt(e) })

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	names := lo.FilterMap(entries, func(fi os.FileInfo, _ int) (string, bool) {
		name := fi.Name()
		if fi.IsDir() || strings.HasPrefix(name, ".") {
			return "", false
		}
		return name, lo.Contains(exts, strings.ToLower(filepath.Ext(name)))
	})
	sort.Sort(natural.StringSlice(names))

	l.Debug("scan complete", "dir", dir, "entries", len(entries), "images", len(names))
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoImages)
	}
	return lo.Map(names, func(n string, _ int) string { return filepath.Join(dir, n) }), nil
}

// ClassifyType tells images, RAW sidecars and everything else apart by
// extension: "image", "raw" or "other".
func ClassifyType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tif", ".tiff":
		return "image"
	case ".raf", ".raw", ".cr2", ".cr3", ".nef", ".arw", ".dng", ".orf", ".rw2", ".pef", ".srw":
		return "raw"
	}
	return "other"
}

func normalizeExt(e string) string {
	e = strings.ToLower(strings.TrimSpace(e))
	if e != "" && !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	return e
}
