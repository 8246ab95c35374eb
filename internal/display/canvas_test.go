package display

import (
	"image"
	"testing"
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
)

var _ Display = (*FakeDisplay)(nil)
var _ Display = (*EPaper)(nil)
var _ Drawer = (*Canvas)(nil)

// inked counts black pixels inside r.
func inked(img *image.Gray, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.GrayAt(x, y).Y < 128 {
				n++
			}
		}
	}
	return n
}

func TestCanvasStartsBlank(t *testing.T) {
	c := NewCanvas()
	if n := inked(c.Image(), c.Image().Bounds()); n != 0 {
		t.Errorf("expected blank canvas, got %d inked pixels", n)
	}
}

func TestCanvasRegions(t *testing.T) {
	body := image.Rect(0, statusH+1, Width, Height)
	top := image.Rect(0, 0, Width, statusH)

	tests := []struct {
		name   string
		draw   func(c *Canvas)
		inside image.Rectangle
		empty  image.Rectangle
	}{
		{
			name:   "status bar",
			draw:   func(c *Canvas) { c.DrawStatusBar("87%", logic.SyncStamp{Hour: 14, Minute: 3, Valid: true}) },
			inside: top,
			empty:  body,
		},
		{
			name:   "time",
			draw:   func(c *Canvas) { c.DrawTime(14, 3) },
			inside: image.Rect(0, 38, Width, 90),
			empty:  top,
		},
		{
			name:   "date",
			draw:   func(c *Canvas) { c.DrawDate(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)) },
			inside: image.Rect(0, 95, Width, Height),
			empty:  image.Rect(0, 0, Width, 90),
		},
		{
			name:   "seconds",
			draw:   func(c *Canvas) { c.DrawSeconds(7) },
			inside: image.Rect(100, 20, 150, 35),
			empty:  image.Rect(0, 38, Width, Height),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCanvas()
			tt.draw(c)
			if inked(c.Image(), tt.inside) == 0 {
				t.Errorf("expected ink inside %v", tt.inside)
			}
			if n := inked(c.Image(), tt.empty); n != 0 {
				t.Errorf("expected nothing in %v, got %d pixels", tt.empty, n)
			}
		})
	}
}

func TestCanvasMessagesFit(t *testing.T) {
	for _, m := range []Message{UpdateMessage, CriticalMessage} {
		t.Run(m.Name, func(t *testing.T) {
			c := NewCanvas()
			c.DrawMessage(m)
			img := c.Image()
			if inked(img, img.Bounds()) == 0 {
				t.Fatal("expected message to be drawn")
			}
			for _, l := range m.Lines {
				w := 7 * len(l.Text) * l.Scale
				if w > Width {
					t.Errorf("line %q is %dpx wide", l.Text, w)
				}
			}
		})
	}
}

func TestToPortrait(t *testing.T) {
	c := NewCanvas()
	// Top-left corner of the landscape frame.
	c.Image().Pix[0] = 0
	p := toPortrait(c.Image())
	if p.Bounds() != image.Rect(0, 0, Height, Width) {
		t.Fatalf("unexpected bounds %v", p.Bounds())
	}
	if p.GrayAt(Height-1, 0).Y != 0 {
		t.Error("expected landscape origin at the portrait top-right")
	}
}

func TestFakeDisplayRecordsFrames(t *testing.T) {
	f := NewFakeDisplay()
	if err := f.EndFrame(); err == nil {
		t.Error("expected error ending a frame that was never begun")
	}

	now := time.Date(2026, 3, 14, 14, 3, 7, 0, time.UTC)
	if err := f.BeginFrame(logic.RefreshPartial); err != nil {
		t.Fatal(err)
	}
	DrawFace(f, Face{Battery: "5%", Time: now, ShowSeconds: true})
	if err := f.EndFrame(); err != nil {
		t.Fatal(err)
	}

	frame, ok := f.Last()
	if !ok {
		t.Fatal("expected a frame")
	}
	if frame.Style != logic.RefreshPartial {
		t.Errorf("expected partial, got %s", frame.Style)
	}
	for _, op := range []string{"status 5% --:--", "time 14:03", "date 2026-03-14", "seconds 07"} {
		if !frame.Has(op) {
			t.Errorf("expected op %q in %v", op, frame.Ops)
		}
	}
	if inked(frame.Image, frame.Image.Bounds()) == 0 {
		t.Error("expected frame snapshot to hold the drawing")
	}
}
