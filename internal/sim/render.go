package sim

import (
	"image"
	"strings"
)

// HalfBlocks renders img as text. Each character covers step pixels across
// and two blocks of step pixels down; a block is dark when any pixel in it
// is dark, so one-pixel strokes survive the downsampling.
func HalfBlocks(img *image.Gray, step int) string {
	if img == nil {
		return ""
	}
	if step < 1 {
		step = 1
	}
	b := img.Bounds()
	dark := func(x0, y0 int) bool {
		for y := y0; y < y0+step && y < b.Max.Y; y++ {
			for x := x0; x < x0+step && x < b.Max.X; x++ {
				if img.GrayAt(x, y).Y < 128 {
					return true
				}
			}
		}
		return false
	}

	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 * step {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}
		for x := b.Min.X; x < b.Max.X; x += step {
			top := dark(x, y)
			bottom := y+step < b.Max.Y && dark(x, y+step)
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String()
}
