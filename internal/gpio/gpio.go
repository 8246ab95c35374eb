// Package gpio provides the button inputs and the switched outputs with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/epaper-clock/internal/logic"

// Buttons reads the two push buttons and delivers their press edges.
type Buttons interface {
	// Levels returns the logical (pressed) state of both buttons.
	// The raw GPIO values are inverted: the buttons pull the line low.
	Levels() (logic.Buttons, error)

	// Watch installs fn as the press handler for pin, replacing any
	// previous handler. fn runs on the event goroutine and must not block.
	// The returned cancel removes fn if it is still installed.
	Watch(pin logic.PinID, fn func()) (cancel func(), err error)

	// Close releases GPIO resources.
	Close() error
}

// Output drives a single switched line.
type Output interface {
	Set(on bool) error
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip = "gpiochip0"

	PinUpdate = 5  // update button, to ground
	PinUser   = 6  // user button, to ground
	PinAux    = 13 // peripheral power rail enable
	PinLED    = 19 // update LED, active low
)

// handler boxes a press callback so cancel can tell it apart from a
// replacement.
type handler struct{ fn func() }
