package decode

import (
	"image"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"

	"github.com/ghyeongl/photocull/logging"
)

const orientationTag = 0x0112

// Orientation returns the EXIF orientation (1-8) found in data, or 1 when
// there is no EXIF block or it cannot be parsed.
func Orientation(data []byte) int {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return 1
	}
	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		logging.Sub("decode").Debug("exif parse failed", "err", err)
		return 1
	}
	for _, t := range tags {
		if t.TagId != orientationTag {
			continue
		}
		if v, ok := t.Value.([]uint16); ok && len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
			return int(v[0])
		}
	}
	return 1
}

// Orient applies an EXIF orientation so the image displays upright.
func Orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}
