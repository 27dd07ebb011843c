package tui

import (
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ghyeongl/photocull/decode"
	"github.com/ghyeongl/photocull/prefetch"
)

// renderHalfBlocks draws img into at most cols x rows terminal cells using
// the upper half block, so each cell shows two vertically stacked pixels.
func renderHalfBlocks(img *prefetch.Image, cols, rows int) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	fitted := imaging.Fit(decode.ToNRGBA(img), cols, rows*2, imaging.Box)
	b := fitted.Bounds()
	w, h := b.Dx(), b.Dy()

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := fitted.NRGBAAt(x, y)
			bot := top
			if y+1 < h {
				bot = fitted.NRGBAAt(x, y+1)
			}
			fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀",
				top.R, top.G, top.B, bot.R, bot.G, bot.B)
		}
		sb.WriteString("\x1b[0m")
		if y+2 < h {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
