package logic

import (
	"time"

	"golang.org/x/exp/constraints"
)

// Scheduler decides when the next wake is due and how frames are refreshed.
type Scheduler struct {
	// WakeMargin is how long before the minute boundary the device wakes.
	WakeMargin time.Duration
	// OmitSleep is the window before a minute boundary in which the boot
	// waits for the boundary instead of rendering the current minute.
	OmitSleep time.Duration
	// FullRefreshEvery forces a full refresh on boots that are a multiple
	// of it. Zero disables the forced full refresh.
	FullRefreshEvery uint32
	Policy           RefreshPolicy
}

// NextDeadline returns the time remaining until the next minute boundary,
// minus the wake margin, clamped to be non-negative.
func (s Scheduler) NextDeadline(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return clamp(next.Sub(now)-s.WakeMargin, 0, time.Minute)
}

// ShouldWait reports whether now is close enough to the next minute
// boundary that the boot should wait for it before rendering.
func (s Scheduler) ShouldWait(now time.Time) bool {
	return UpcomingMinute(now, s.OmitSleep).After(now)
}

// RefreshStyle picks the refresh style for the clock face when moving from
// last to mode.
func (s Scheduler) RefreshStyle(mode, last Mode, bootCount uint32) RefreshStyle {
	if s.FullRefreshEvery > 0 && bootCount%s.FullRefreshEvery == 0 {
		return RefreshFull
	}
	switch s.Policy {
	case PolicyAlways:
		return RefreshPartial
	case PolicyTransitions:
		if PartialTransition(last, mode) {
			return RefreshPartial
		}
	}
	return RefreshFull
}

// MessageStyle is the refresh style for full-screen messages (update and
// critical battery). They follow the preference only, never the transition.
func (s Scheduler) MessageStyle() RefreshStyle {
	if s.Policy == PolicyAlways {
		return RefreshPartial
	}
	return RefreshFull
}

// LoopStyle is the refresh style for frame n of the seconds loop. Only the
// first frame may need a full refresh, when the display lost its buffer
// while asleep; the rest redraw a single counter.
func (s Scheduler) LoopStyle(n int) RefreshStyle {
	if n == 0 && s.Policy == PolicyNever {
		return RefreshFull
	}
	return RefreshPartial
}

// PartialTransition reports whether a partial refresh is safe when moving
// from last to mode. Partial updates compound artifacts, so only transitions
// between closely related frames qualify.
func PartialTransition(last, mode Mode) bool {
	switch last {
	case ModeReset, ModeNormal, ModeResync:
	default:
		return false
	}
	switch mode {
	case ModeNormal, ModeResync, ModeUser:
		return true
	}
	return false
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
