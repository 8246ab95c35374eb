package power

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// FakePlatform records wake arming and sleep entry for tests.
type FakePlatform struct {
	mu sync.Mutex

	Timer      time.Duration
	TimerArmed bool
	Pins       map[logic.PinID]Level

	// Slept is set by EnterDeepSleep, Restarts counts Restart calls.
	Slept    bool
	Restarts int

	// OnRestart, if set, is called by Restart, for example to cancel the
	// running boot.
	OnRestart func()

	// SleepError, if set, is returned by EnterDeepSleep.
	SleepError error
}

// NewFakePlatform creates an empty FakePlatform.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{Pins: make(map[logic.PinID]Level)}
}

// ArmTimerWake implements Platform.
func (f *FakePlatform) ArmTimerWake(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Timer = d
	f.TimerArmed = true
}

// ArmPinWake implements Platform.
func (f *FakePlatform) ArmPinWake(pin logic.PinID, level Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pins[pin] = level
}

// DisableWakeSources implements Platform.
func (f *FakePlatform) DisableWakeSources() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Timer = 0
	f.TimerArmed = false
	clear(f.Pins)
}

// EnterDeepSleep implements Platform. It records the sleep and returns.
func (f *FakePlatform) EnterDeepSleep(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SleepError != nil {
		return f.SleepError
	}
	f.Slept = true
	return nil
}

// Restart implements Platform.
func (f *FakePlatform) Restart() {
	f.mu.Lock()
	f.Restarts++
	fn := f.OnRestart
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Armed reports whether any wake source is armed.
func (f *FakePlatform) Armed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TimerArmed || len(f.Pins) > 0
}

// RestartCount returns Restarts under the lock.
func (f *FakePlatform) RestartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Restarts
}
