package gpio

import (
	"sync"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// FakeButtons is a test double with scripted levels and manual presses.
type FakeButtons struct {
	mu sync.Mutex

	// State is returned by Levels.
	State logic.Buttons

	// LevelError, if set, will be returned by Levels()
	LevelError error

	// Closed tracks if Close was called
	Closed bool

	handlers map[logic.PinID]*handler
}

// NewFakeButtons creates FakeButtons reporting the given levels.
func NewFakeButtons(state logic.Buttons) *FakeButtons {
	return &FakeButtons{State: state, handlers: make(map[logic.PinID]*handler)}
}

// Levels returns the scripted state.
func (f *FakeButtons) Levels() (logic.Buttons, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LevelError != nil {
		return logic.Buttons{}, f.LevelError
	}
	return f.State, nil
}

// Watch installs the press handler for pin.
func (f *FakeButtons) Watch(pin logic.PinID, fn func()) (func(), error) {
	h := &handler{fn: fn}
	f.mu.Lock()
	if f.handlers == nil {
		f.handlers = make(map[logic.PinID]*handler)
	}
	f.handlers[pin] = h
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.handlers[pin] == h {
			delete(f.handlers, pin)
		}
	}, nil
}

// Press runs the handler installed for pin, as a falling edge would. It
// reports whether a handler was installed.
func (f *FakeButtons) Press(pin logic.PinID) bool {
	f.mu.Lock()
	h := f.handlers[pin]
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h.fn()
	return true
}

// Watched reports whether a handler is installed for pin.
func (f *FakeButtons) Watched(pin logic.PinID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[pin] != nil
}

// SetState replaces the scripted levels.
func (f *FakeButtons) SetState(b logic.Buttons) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.State = b
}

// Close marks the buttons as closed.
func (f *FakeButtons) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeOutput records every Set call.
type FakeOutput struct {
	On      bool
	History []bool

	// SetError, if set, will be returned by Set()
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// Set records the new state.
func (f *FakeOutput) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	f.History = append(f.History, on)
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded state.
func (f *FakeOutput) Reset() {
	f.On = false
	f.History = nil
	f.Closed = false
}
