package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// Landscape frame size of the 2.13" panel.
const (
	Width  = 250
	Height = 122
)

// Layout, as vertical centers in the landscape frame.
const (
	statusY  = 8
	statusH  = 16
	secondsY = 27
	timeY    = 64
	timeS    = 4
	dateY    = 108
	dateS    = 2
)

var face = basicfont.Face7x13

// Canvas draws frames into an 8-bit gray landscape image.
type Canvas struct {
	img *image.Gray
}

// NewCanvas returns a blank canvas.
func NewCanvas() *Canvas {
	c := &Canvas{img: image.NewGray(image.Rect(0, 0, Width, Height))}
	c.Clear()
	return c
}

// Image returns the current frame.
func (c *Canvas) Image() *image.Gray {
	return c.img
}

// Snapshot returns a copy of the current frame.
func (c *Canvas) Snapshot() *image.Gray {
	cp := image.NewGray(c.img.Rect)
	copy(cp.Pix, c.img.Pix)
	return cp
}

// Clear fills the frame with white.
func (c *Canvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.White, image.Point{}, draw.Src)
}

// DrawStatusBar draws the battery level on the left and the last sync time on
// the right, above a rule.
func (c *Canvas) DrawStatusBar(battery string, lastSync logic.SyncStamp) {
	c.centerText(battery, 1, 26, statusY)
	c.centerText(lastSync.String(), 1, Width-24, statusY)
	for x := 0; x < Width; x++ {
		c.img.SetGray(x, statusH, color.Gray{})
	}
}

// DrawTime draws HH:MM in large digits.
func (c *Canvas) DrawTime(hour, minute int) {
	c.centerText(fmt.Sprintf("%02d:%02d", hour, minute), timeS, Width/2, timeY)
}

// DrawDate draws the ISO date under the time.
func (c *Canvas) DrawDate(t time.Time) {
	c.centerText(t.Format(time.DateOnly), dateS, Width/2, dateY)
}

// DrawSeconds draws the seconds counter above the colon.
func (c *Canvas) DrawSeconds(second int) {
	c.centerText(fmt.Sprintf("%02d", second), 1, Width/2, secondsY)
}

// DrawMessage draws every line of m centered.
func (c *Canvas) DrawMessage(m Message) {
	for _, l := range m.Lines {
		c.centerText(l.Text, max(l.Scale, 1), Width/2, l.Y)
	}
}

// centerText draws s in black, magnified by scale, centered on (cx, cy).
func (c *Canvas) centerText(s string, scale, cx, cy int) {
	if s == "" {
		return
	}
	m := face.Metrics()
	w := font.MeasureString(face, s).Ceil()
	h := m.Height.Ceil()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, m.Ascent.Ceil()),
	}
	d.DrawString(s)

	sw, sh := w*scale, h*scale
	dst := image.Rect(cx-sw/2, cy-sh/2, cx-sw/2+sw, cy-sh/2+sh)
	scaled := mask
	if scale > 1 {
		scaled = image.NewAlpha(image.Rect(0, 0, sw, sh))
		xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), mask, mask.Bounds(), xdraw.Src, nil)
	}
	draw.DrawMask(c.img, dst, image.Black, image.Point{}, scaled, image.Point{}, draw.Over)
}

// toPortrait rotates a landscape frame into the panel's native 122x250
// orientation.
func toPortrait(src *image.Gray) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, Height, Width))
	for y := 0; y < Width; y++ {
		for x := 0; x < Height; x++ {
			dst.SetGray(x, y, src.GrayAt(y, Height-1-x))
		}
	}
	return dst
}
