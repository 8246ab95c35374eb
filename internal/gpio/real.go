//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// debounce filters contact bounce on the button lines.
const debounce = 10 * time.Millisecond

// RealButtons reads the buttons using the Linux GPIO character device.
type RealButtons struct {
	chip  *gpiocdev.Chip
	lines map[logic.PinID]*gpiocdev.Line

	mu       sync.Mutex
	handlers map[logic.PinID]*handler
}

// NewRealButtons requests both button lines on chip as pulled-up inputs with
// falling-edge events.
func NewRealButtons(chip string, pinUpdate, pinUser int) (*RealButtons, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealButtons{
		chip:     c,
		lines:    make(map[logic.PinID]*gpiocdev.Line),
		handlers: make(map[logic.PinID]*handler),
	}
	for id, offset := range map[logic.PinID]int{logic.PinUpdate: pinUpdate, logic.PinUser: pinUser} {
		line, err := c.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(debounce),
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { b.dispatch(id) }),
		)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", id, offset, err)
		}
		b.lines[id] = line
	}
	return b, nil
}

func (b *RealButtons) dispatch(pin logic.PinID) {
	b.mu.Lock()
	h := b.handlers[pin]
	b.mu.Unlock()
	if h != nil {
		h.fn()
	}
}

// Levels returns the logical button states.
// Inverts raw GPIO: raw 0 = pressed.
func (b *RealButtons) Levels() (logic.Buttons, error) {
	update, err := b.lines[logic.PinUpdate].Value()
	if err != nil {
		return logic.Buttons{}, fmt.Errorf("read update pin: %w", err)
	}
	user, err := b.lines[logic.PinUser].Value()
	if err != nil {
		return logic.Buttons{}, fmt.Errorf("read user pin: %w", err)
	}
	return logic.Buttons{Update: update == 0, User: user == 0}, nil
}

// Watch installs the press handler for pin.
func (b *RealButtons) Watch(pin logic.PinID, fn func()) (func(), error) {
	if _, ok := b.lines[pin]; !ok {
		return nil, fmt.Errorf("watch: unknown pin %s", pin)
	}
	h := &handler{fn: fn}
	b.mu.Lock()
	b.handlers[pin] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.handlers[pin] == h {
			delete(b.handlers, pin)
		}
	}, nil
}

// Close releases GPIO resources.
func (b *RealButtons) Close() error {
	var errs []error
	for id, line := range b.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", id, err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutput drives one output line.
type RealOutput struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealOutput requests offset on chip as an output, initially off.
// With activeLow set, on drives the line low.
func NewRealOutput(chip string, offset int, activeLow bool) (*RealOutput, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := c.RequestLine(offset, opts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	return &RealOutput{chip: c, line: line}, nil
}

// Set drives the line to its logical on or off state.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	return nil
}

// Close releases the line.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// so the rail it drives is not left floating high.
func (o *RealOutput) Close() error {
	var errs []error
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure output pin: %w", err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output pin: %w", err))
	}
	if err := o.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
