package display

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// Frame is one frame pushed to a FakeDisplay.
type Frame struct {
	Style logic.RefreshStyle
	// Ops lists the primitives drawn, e.g. "time 14:03".
	Ops   []string
	Image *image.Gray
}

// Has reports whether op was drawn in the frame.
func (f Frame) Has(op string) bool {
	for _, o := range f.Ops {
		if o == op {
			return true
		}
	}
	return false
}

// FakeDisplay renders to a Canvas and records every frame.
type FakeDisplay struct {
	*Canvas

	Frames     []Frame
	PowerDowns int
	BeginError error
	EndError   error
	OnEndFrame func(Frame)

	open    bool
	current Frame
}

// NewFakeDisplay creates an empty FakeDisplay.
func NewFakeDisplay() *FakeDisplay {
	return &FakeDisplay{Canvas: NewCanvas()}
}

// BeginFrame implements Display.
func (f *FakeDisplay) BeginFrame(style logic.RefreshStyle) error {
	if f.BeginError != nil {
		return f.BeginError
	}
	f.Clear()
	f.current = Frame{Style: style}
	f.open = true
	return nil
}

func (f *FakeDisplay) op(format string, args ...any) {
	f.current.Ops = append(f.current.Ops, fmt.Sprintf(format, args...))
}

// DrawStatusBar implements Display.
func (f *FakeDisplay) DrawStatusBar(battery string, lastSync logic.SyncStamp) {
	f.op("status %s %s", battery, lastSync)
	f.Canvas.DrawStatusBar(battery, lastSync)
}

// DrawTime implements Display.
func (f *FakeDisplay) DrawTime(hour, minute int) {
	f.op("time %02d:%02d", hour, minute)
	f.Canvas.DrawTime(hour, minute)
}

// DrawDate implements Display.
func (f *FakeDisplay) DrawDate(t time.Time) {
	f.op("date %s", t.Format(time.DateOnly))
	f.Canvas.DrawDate(t)
}

// DrawSeconds implements Display.
func (f *FakeDisplay) DrawSeconds(second int) {
	f.op("seconds %02d", second)
	f.Canvas.DrawSeconds(second)
}

// DrawMessage implements Display.
func (f *FakeDisplay) DrawMessage(m Message) {
	f.op("message %s", m.Name)
	f.Canvas.DrawMessage(m)
}

// EndFrame implements Display.
func (f *FakeDisplay) EndFrame() error {
	if !f.open {
		return errors.New("end frame: no frame begun")
	}
	if f.EndError != nil {
		return f.EndError
	}
	f.current.Image = f.Snapshot()
	f.Frames = append(f.Frames, f.current)
	f.open = false
	if f.OnEndFrame != nil {
		f.OnEndFrame(f.current)
	}
	return nil
}

// PowerDown implements Display.
func (f *FakeDisplay) PowerDown() error {
	f.PowerDowns++
	return nil
}

// Last returns the most recent frame.
func (f *FakeDisplay) Last() (Frame, bool) {
	if len(f.Frames) == 0 {
		return Frame{}, false
	}
	return f.Frames[len(f.Frames)-1], true
}
