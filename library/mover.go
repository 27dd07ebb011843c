package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
)

// Folder names created next to the images.
const (
	EditDir = "edit"
	BinDir  = "bin"
)

// DefaultSidecars are the companion extensions moved along with an image.
var DefaultSidecars = []string{".RAF"}

// Result lists where an action put the image and its sidecars.
type Result struct {
	Image    string   `json:"image"`
	Sidecars []string `json:"sidecars,omitempty"`
}

// Mover copies images to edit/ and moves them to bin/, sidecars included.
type Mover struct {
	fs       afero.Fs
	editDir  string
	binDir   string
	sidecars []string
}

// NewMover creates a Mover for images in folder.
func NewMover(fs afero.Fs, folder string, sidecars []string) *Mover {
	if len(sidecars) == 0 {
		sidecars = DefaultSidecars
	}
	return &Mover{
		fs:       fs,
		editDir:  filepath.Join(folder, EditDir),
		binDir:   filepath.Join(folder, BinDir),
		sidecars: lo.Map(sidecars, func(e string, _ int) string { return normalizeExt(e) }),
	}
}

// Edit copies path and its sidecars into edit/.
func (m *Mover) Edit(ctx context.Context, path string) (Result, error) {
	return m.apply(ctx, path, m.editDir, "edit", SafeCopy)
}

// Bin moves path and its sidecars into bin/.
func (m *Mover) Bin(ctx context.Context, path string) (Result, error) {
	return m.apply(ctx, path, m.binDir, "bin", Move)
}

type transfer func(ctx context.Context, fs afero.Fs, src, dst string) error

func (m *Mover) apply(ctx context.Context, path, dir, action string, op transfer) (Result, error) {
	l := sub("mover")
	var res Result

	dst, err := UniquePath(m.fs, dir, filepath.Base(path))
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", action, path, err)
	}
	if err := op(ctx, m.fs, path, dst); err != nil {
		return res, fmt.Errorf("%s %s: %w", action, path, err)
	}
	res.Image = dst

	sidecars := m.Sidecars(path)
	if len(sidecars) == 0 {
		l.Info("no sidecar, only the image was transferred", "action", action, "item", path)
	}
	for _, sc := range sidecars {
		scDst, err := UniquePath(m.fs, dir, filepath.Base(sc))
		if err == nil {
			err = op(ctx, m.fs, sc, scDst)
		}
		if err != nil {
			l.Warn("sidecar transfer failed", "action", action, "item", sc, "err", err)
			continue
		}
		res.Sidecars = append(res.Sidecars, scDst)
	}
	l.Info("transferred", "action", action, "item", path, "dst", dst, "sidecars", len(res.Sidecars))
	return res, nil
}

// Sidecars returns the existing files next to path that share its stem and
// carry one of the configured sidecar extensions.
func (m *Mover) Sidecars(path string) []string {
	dir := filepath.Dir(path)
	stem := stemOf(filepath.Base(path))
	entries, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		return nil
	}
	return lo.FilterMap(entries, func(fi os.FileInfo, _ int) (string, bool) {
		name := fi.Name()
		if fi.IsDir() || name == filepath.Base(path) {
			return "", false
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !lo.Contains(m.sidecars, ext) {
			return "", false
		}
		return filepath.Join(dir, name), stemOf(name) == stem
	})
}

// stemOf strips the extension and normalises to NFC so names written by
// different filesystems compare equal.
func stemOf(name string) string {
	return norm.NFC.String(strings.TrimSuffix(name, filepath.Ext(name)))
}
