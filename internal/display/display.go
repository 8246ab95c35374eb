// Package display renders the clock face and full-screen messages to the
// e-paper panel.
package display

import (
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// Display is one e-paper panel. A frame is drawn between BeginFrame and
// EndFrame; EndFrame pushes it to the panel with the style given to
// BeginFrame.
type Display interface {
	BeginFrame(style logic.RefreshStyle) error
	Drawer
	EndFrame() error
	// PowerDown puts the panel into deep sleep. The image stays visible.
	PowerDown() error
}

// Drawer holds the drawing primitives. Canvas implements it.
type Drawer interface {
	DrawStatusBar(battery string, lastSync logic.SyncStamp)
	DrawTime(hour, minute int)
	DrawDate(t time.Time)
	DrawSeconds(second int)
	DrawMessage(m Message)
}

// Face is everything shown on the clock face.
type Face struct {
	Battery  string
	LastSync logic.SyncStamp
	Time     time.Time
	// ShowSeconds adds the seconds counter used by the interactive loop.
	ShowSeconds bool
}

// DrawFace draws f with the primitives of d.
func DrawFace(d Drawer, f Face) {
	d.DrawStatusBar(f.Battery, f.LastSync)
	d.DrawTime(f.Time.Hour(), f.Time.Minute())
	d.DrawDate(f.Time)
	if f.ShowSeconds {
		d.DrawSeconds(f.Time.Second())
	}
}

// Line is one centered line of a message.
type Line struct {
	Text  string
	Scale int
	// Y is the vertical center of the line.
	Y int
}

// Message is a full-screen notice.
type Message struct {
	Name  string
	Lines []Line
}

// UpdateMessage is shown while the device stalls for a firmware update.
var UpdateMessage = Message{
	Name: "update",
	Lines: []Line{
		{Text: "ISOLATE", Scale: 2, Y: 14},
		{Text: "before plugging in", Scale: 1, Y: 36},
		{Text: "UPDATE", Scale: 4, Y: 68},
		{Text: "Connect directly!", Scale: 1, Y: 112},
	},
}

// CriticalMessage is the last image before a low-battery shutdown.
var CriticalMessage = Message{
	Name: "critical",
	Lines: []Line{
		{Text: "CRITICAL", Scale: 3, Y: 30},
		{Text: "BATTERY", Scale: 3, Y: 72},
		{Text: "Charge the device!", Scale: 1, Y: 112},
	},
}
