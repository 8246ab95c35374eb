// Package power provides the boot-to-boot platform primitives: wake
// diagnostics, wake source arming, deep sleep and the restart trampoline.
//
// On Linux a deep sleep ends by re-executing the binary, so every wake is a
// fresh process. The exit record written just before that exec tells the
// next process why it is running.
package power

import (
	"context"
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/state"
)

// Level is the GPIO level that ends a deep sleep.
type Level uint8

const (
	LevelLow Level = iota
	LevelHigh
)

// Platform is the sleep/wake primitive used by the boot controller.
type Platform interface {
	// ArmTimerWake schedules a wake d from now.
	ArmTimerWake(d time.Duration)
	// ArmPinWake wakes the device when pin reaches level.
	ArmPinWake(pin logic.PinID, level Level)
	// DisableWakeSources clears every armed source.
	DisableWakeSources()
	// EnterDeepSleep ends the boot. On hardware it does not return on
	// success. With no wake source armed the sleep is indefinite.
	EnterDeepSleep(ctx context.Context) error
	// Restart ends the boot immediately and starts a new one. It is safe to
	// call from an interrupt handler.
	Restart()
}

// Diagnose derives the wake event of this boot from the exit record left by
// the previous process, and clears the record. A missing record, one from an
// earlier kernel boot, or a process that never recorded its exit all count as
// a cold power-on.
func Diagnose(exits state.ExitLog) logic.WakeEvent {
	rec, ok := exits.LoadExit()
	if !ok {
		return logic.WakeEvent{Cause: logic.CauseCold}
	}
	exits.StoreExit(state.ExitRecord{})

	switch rec.Reason {
	case state.ExitRestart:
		return logic.WakeEvent{Cause: logic.CauseSoftware}
	case state.ExitSleep:
		ev := logic.WakeEvent{Cause: logic.CauseSleepWake, Source: rec.Source}
		if rec.Source == logic.SourcePin {
			ev.Pin = rec.Pin
		}
		return ev
	default:
		return logic.WakeEvent{Cause: logic.CauseCold}
	}
}

// SleepMethod selects how Host waits out a deep sleep.
type SleepMethod string

const (
	// MethodIdle blocks the process on the timer and the button edges.
	MethodIdle SleepMethod = "idle"
	// MethodSuspend suspends the system to RAM with an RTC wake alarm.
	// Critical shutdown powers the board off.
	MethodSuspend SleepMethod = "suspend"
)

// ParseSleepMethod accepts "idle" or "suspend".
func ParseSleepMethod(s string) (SleepMethod, bool) {
	switch SleepMethod(s) {
	case MethodIdle, MethodSuspend:
		return SleepMethod(s), true
	}
	return "", false
}
