package prefetch

import "context"

// Image is a decoded picture as tightly packed 8-bit RGB.
type Image struct {
	Width  int
	Height int
	Pix    []byte // len == 3*Width*Height
}

// Portrait reports whether the image is taller than wide.
func (im *Image) Portrait() bool {
	return im.Height > im.Width
}

// Decoder turns an item identifier into pixels. Orientation correction is the
// decoder's job; the cache treats the result as opaque.
type Decoder interface {
	Decode(ctx context.Context, item string) (*Image, error)
}
