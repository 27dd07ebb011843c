package library

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const copyChunkSize = 256 * 1024

const tmpSuffix = ".photocull-tmp"

// ErrSourceModified is returned when SafeCopy detects that the source file
// changed while it was being copied.
var ErrSourceModified = fmt.Errorf("source modified during copy")

// safeTmpPath returns the temporary name used while copying to dst. Long
// names are shortened with a hash so the suffix never exceeds NAME_MAX.
func safeTmpPath(dst string) string {
	base := filepath.Base(dst)
	if len(base)+len(tmpSuffix) <= 255 {
		return dst + tmpSuffix
	}
	sum := sha256.Sum256([]byte(base))
	return filepath.Join(filepath.Dir(dst), base[:200]+tmpSuffix+"-"+hex.EncodeToString(sum[:8]))
}

// SafeCopy copies src to dst in chunks through a temporary file, checking
// ctx between chunks, and renames it into place only if src's mtime did not
// change meanwhile. dst keeps src's mtime.
func SafeCopy(ctx context.Context, fs afero.Fs, src, dst string) error {
	srcInfo, err := fs.Stat(src)
	if err != nil {
		return fmt.Errorf("stat src: %w", err)
	}
	mtime := srcInfo.ModTime()

	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir dst parent: %w", err)
	}

	tmpPath := safeTmpPath(dst)
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open src: %w", err)
	}
	defer in.Close()

	out, err := fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}

	copyErr := copyChunks(ctx, out, in)
	out.Close()
	if copyErr != nil {
		fs.Remove(tmpPath)
		return copyErr
	}

	again, err := fs.Stat(src)
	if err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("re-stat src: %w", err)
	}
	if !again.ModTime().Equal(mtime) {
		fs.Remove(tmpPath)
		return ErrSourceModified
	}

	if err := fs.Chtimes(tmpPath, time.Now(), mtime); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("chtimes tmp: %w", err)
	}
	if err := fs.Rename(tmpPath, dst); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("rename tmp to dst: %w", err)
	}
	return nil
}

func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, copyChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write tmp: %w", err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read src: %w", readErr)
		}
	}
}

// Move renames src to dst, falling back to copy and remove when a plain
// rename is not possible (e.g. across devices).
func Move(ctx context.Context, fs afero.Fs, src, dst string) error {
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir dst parent: %w", err)
	}
	err := fs.Rename(src, dst)
	if err == nil {
		return nil
	}
	if _, statErr := fs.Stat(src); statErr != nil {
		return fmt.Errorf("move: %w", err)
	}
	sub("fileops").Debug("rename failed, copying", "src", src, "dst", dst, "err", err)
	if err := SafeCopy(ctx, fs, src, dst); err != nil {
		return err
	}
	if err := fs.Remove(src); err != nil {
		return fmt.Errorf("remove after copy: %w", err)
	}
	return nil
}

// UniquePath returns dir/base, or dir/name_N.ext for the first N that does
// not exist yet.
func UniquePath(fs afero.Fs, dir, base string) (string, error) {
	candidate := filepath.Join(dir, base)
	ok, err := afero.Exists(fs, candidate)
	if err != nil {
		return "", err
	}
	if !ok {
		return candidate, nil
	}
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", name, i, ext))
		_, err := fs.Stat(candidate)
		switch {
		case os.IsNotExist(err):
			return candidate, nil
		case err != nil:
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
	}
}
