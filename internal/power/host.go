package power

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/state"
)

// EdgeSource reports button levels and press edges. gpio.Buttons satisfies it.
type EdgeSource interface {
	Levels() (logic.Buttons, error)
	Watch(pin logic.PinID, fn func()) (cancel func(), err error)
}

// minSuspend is the shortest timer that is worth a suspend cycle. RTC
// alarms have one-second resolution, so the tail of every sleep is waited
// out in the idle loop.
const minSuspend = 3 * time.Second

// Host implements Platform for a Linux process.
type Host struct {
	exits  state.ExitLog
	pins   EdgeSource
	method SleepMethod
	logger *slog.Logger
	now    func() time.Time

	exec     func() error
	suspend  func(d time.Duration) error
	powerOff func() error

	mu       sync.Mutex
	timer    time.Duration
	timerSet bool
	armed    map[logic.PinID]Level
}

// HostConfig configures NewHost.
type HostConfig struct {
	Exits  state.ExitLog
	Pins   EdgeSource
	Method SleepMethod
	Logger *slog.Logger
}

func newHost(cfg HostConfig) *Host {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	method := cfg.Method
	if method == "" {
		method = MethodIdle
	}
	return &Host{
		exits:  cfg.Exits,
		pins:   cfg.Pins,
		method: method,
		logger: logger,
		now:    time.Now,
		armed:  make(map[logic.PinID]Level),
	}
}

// NewLoopbackHost returns a Host that calls next instead of re-executing the
// binary, so consecutive boots can run inside one process. It cannot suspend
// or power off.
func NewLoopbackHost(cfg HostConfig, next func()) *Host {
	h := newHost(cfg)
	h.exec = func() error {
		next()
		return nil
	}
	h.suspend = func(time.Duration) error { return errUnsupported }
	h.powerOff = func() error { return errUnsupported }
	return h
}

// ArmTimerWake implements Platform.
func (h *Host) ArmTimerWake(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timer = d
	h.timerSet = true
}

// ArmPinWake implements Platform. Only LevelLow, a pressed button, is
// supported.
func (h *Host) ArmPinWake(pin logic.PinID, level Level) {
	if level != LevelLow {
		h.logger.Warn("sleep:unsupported-level", slog.String("pin", pin.String()))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armed[pin] = level
}

// DisableWakeSources implements Platform.
func (h *Host) DisableWakeSources() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timerSet = false
	h.timer = 0
	clear(h.armed)
}

// Restart implements Platform. If the exec fails the process exits and the
// service manager starts it again; the exit record still marks it as a
// software reset.
func (h *Host) Restart() {
	h.exits.StoreExit(state.ExitRecord{Reason: state.ExitRestart})
	if err := h.exec(); err != nil {
		os.Exit(1)
	}
}

// EnterDeepSleep implements Platform.
func (h *Host) EnterDeepSleep(ctx context.Context) error {
	h.mu.Lock()
	timer, timerSet := h.timer, h.timerSet
	pins := make([]logic.PinID, 0, len(h.armed))
	for p := range h.armed {
		pins = append(pins, p)
	}
	h.mu.Unlock()

	if !timerSet && len(pins) == 0 {
		return h.sleepForever(ctx)
	}

	// Wall clock, since the monotonic clock stops during suspend.
	deadline := h.now().Round(0).Add(timer)

	if timerSet && h.method == MethodSuspend && timer >= minSuspend {
		// Wake a second early and wait out the rest.
		if err := h.suspend(timer - time.Second); err != nil {
			h.logger.Warn("sleep:suspend-failed", slog.String("err", err.Error()))
		}
	}

	source, pin, err := h.waitForWake(ctx, timerSet, deadline, pins)
	if err != nil {
		return err
	}

	h.logger.Debug("sleep:woke", slog.String("source", source.String()), slog.String("pin", pin.String()))
	h.exits.StoreExit(state.ExitRecord{Reason: state.ExitSleep, Source: source, Pin: pin})
	if err := h.exec(); err != nil {
		return fmt.Errorf("exec after wake: %w", err)
	}
	return nil
}

func (h *Host) waitForWake(ctx context.Context, timerSet bool, deadline time.Time, pins []logic.PinID) (logic.WakeSource, logic.PinID, error) {
	woke := make(chan logic.PinID, len(pins))
	for _, p := range pins {
		if h.pins == nil {
			break
		}
		cancel, err := h.pins.Watch(p, func() {
			select {
			case woke <- p:
			default:
			}
		})
		if err != nil {
			return logic.SourceNone, logic.PinNone, fmt.Errorf("watch %s pin: %w", p, err)
		}
		defer cancel()
	}

	// Level-triggered: a button already held down wakes at once.
	if h.pins != nil && len(pins) > 0 {
		if b, err := h.pins.Levels(); err == nil {
			for _, p := range pins {
				if (p == logic.PinUpdate && b.Update) || (p == logic.PinUser && b.User) {
					return logic.SourcePin, p, nil
				}
			}
		}
	}

	var timeout <-chan time.Time
	if timerSet {
		t := time.NewTimer(max(deadline.Sub(h.now().Round(0)), 0))
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ctx.Done():
		return logic.SourceNone, logic.PinNone, ctx.Err()
	case <-timeout:
		return logic.SourceTimer, logic.PinNone, nil
	case p := <-woke:
		return logic.SourcePin, p, nil
	}
}

func (h *Host) sleepForever(ctx context.Context) error {
	h.logger.Info("sleep:indefinite", slog.String("method", string(h.method)))
	if h.method == MethodSuspend {
		if err := h.powerOff(); err != nil {
			h.logger.Error("sleep:poweroff-failed", slog.String("err", err.Error()))
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

var errUnsupported = errors.New("not supported on this platform")
