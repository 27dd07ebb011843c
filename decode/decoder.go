// Package decode turns image files into the RGB8 frames the prefetch cache
// stores. It reads through an afero filesystem, sniffs the format, applies
// the EXIF orientation and optionally downscales to the display size.
package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/jellydator/ttlcache/v3"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ghyeongl/photocull/logging"
	"github.com/ghyeongl/photocull/prefetch"
)

// ErrUnsupported is returned for files that are not a decodable image.
var ErrUnsupported = fmt.Errorf("unsupported image format")

// DefaultFailureTTL is how long a failed decode is remembered.
const DefaultFailureTTL = 30 * time.Second

// Options tune a Decoder. Zero MaxWidth/MaxHeight disables downscaling.
type Options struct {
	MaxWidth   int
	MaxHeight  int
	FailureTTL time.Duration
}

// Decoder implements prefetch.Decoder on top of afero.
type Decoder struct {
	fs       afero.Fs
	opts     Options
	failures *ttlcache.Cache[string, error]
}

var _ prefetch.Decoder = (*Decoder)(nil)

// New creates a Decoder reading from fs.
func New(fs afero.Fs, opts Options) *Decoder {
	if opts.FailureTTL <= 0 {
		opts.FailureTTL = DefaultFailureTTL
	}
	return &Decoder{
		fs:   fs,
		opts: opts,
		failures: ttlcache.New[string, error](
			ttlcache.WithTTL[string, error](opts.FailureTTL),
			ttlcache.WithDisableTouchOnHit[string, error](),
		),
	}
}

// Decode reads path and returns it as a packed RGB8 image, upright.
func (d *Decoder) Decode(ctx context.Context, path string) (*prefetch.Image, error) {
	l := logging.Sub("decode")
	if it := d.failures.Get(path); it != nil {
		l.Debug("cached failure", "item", path)
		return nil, it.Value()
	}

	img, err := d.decode(ctx, path)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			d.failures.Set(path, err, ttlcache.DefaultTTL)
		}
		return nil, err
	}
	return img, nil
}

// Forget drops any remembered failure for path so the next Decode retries.
func (d *Decoder) Forget(path string) {
	d.failures.Delete(path)
}

func (d *Decoder) decode(ctx context.Context, path string) (*prefetch.Image, error) {
	start := time.Now()
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !filetype.IsImage(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orientation := Orientation(data)
	src = Orient(src, orientation)
	if d.opts.MaxWidth > 0 && d.opts.MaxHeight > 0 {
		src = imaging.Fit(src, d.opts.MaxWidth, d.opts.MaxHeight, imaging.Lanczos)
	}

	out := ToRGB(src)
	if logging.Enabled(slog.LevelDebug) {
		l := logging.Sub("decode")
		l.Debug("decoded", "item", path, "format", format,
			"orientation", orientation, "w", out.Width, "h", out.Height, "took", time.Since(start))
	}
	return out, nil
}

// ToRGB packs any image into a prefetch.Image, dropping alpha.
func ToRGB(src image.Image) *prefetch.Image {
	n := imaging.Clone(src)
	b := n.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 3*w*h)
	for y := 0; y < h; y++ {
		row := n.Pix[y*n.Stride : y*n.Stride+4*w]
		dst := pix[3*w*y:]
		for x := 0; x < w; x++ {
			dst[3*x] = row[4*x]
			dst[3*x+1] = row[4*x+1]
			dst[3*x+2] = row[4*x+2]
		}
	}
	return &prefetch.Image{Width: w, Height: h, Pix: pix}
}

// ToNRGBA is the inverse of ToRGB, for encoding a cached frame.
func ToNRGBA(img *prefetch.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i, j := 0, 0; i+2 < len(img.Pix); i, j = i+3, j+4 {
		out.Pix[j] = img.Pix[i]
		out.Pix[j+1] = img.Pix[i+1]
		out.Pix[j+2] = img.Pix[i+2]
		out.Pix[j+3] = 0xff
	}
	return out
}
