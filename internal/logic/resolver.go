package logic

import "time"

// Reason explains which rule picked the mode of a boot. It is carried into
// logs and boot reports.
type Reason string

const (
	ReasonColdBoot        Reason = "cold-boot"
	ReasonRequest         Reason = "request"
	ReasonTimer           Reason = "timer"
	ReasonUpdatePin       Reason = "update-pin"
	ReasonUserPin         Reason = "user-pin"
	ReasonFallback        Reason = "fallback"
	ReasonResyncHour      Reason = "resync-hour"
	ReasonResyncInterval  Reason = "resync-interval"
	ReasonCriticalBattery Reason = "critical-battery"
)

// Maintenance carries the periodic counters and readings that may override
// a Normal boot.
type Maintenance struct {
	BootCount uint32

	// ResyncEvery forces a resync when BootCount is a multiple of it.
	// Zero disables the interval.
	ResyncEvery uint32
	// ResyncHours lists hours of the day that resync at minute 0.
	ResyncHours []int

	// BatterySampled is set when BatteryMillivolts holds a reading taken
	// during this boot.
	BatterySampled     bool
	BatteryMillivolts  uint32
	CriticalMillivolts uint32
}

// ResolveInput is everything the resolver looks at. Requested must already
// be normalized (see NormalizeRequest) and consumed from warm memory.
type ResolveInput struct {
	Wake        WakeEvent
	Buttons     Buttons
	Requested   Mode
	LastMode    Mode
	Now         time.Time
	Maintenance Maintenance
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Mode   Mode
	Reason Reason
}

// Resolve computes the operating mode for this boot. It never blocks and has
// no failure path.
func Resolve(in ResolveInput) Resolution {
	if in.Wake.Cause == CauseCold {
		// Warm memory, including any request, cannot be trusted.
		return Resolution{Mode: ModeReset, Reason: ReasonColdBoot}
	}

	res := baseMode(in)
	if res.Mode != ModeNormal {
		return res
	}

	m := in.Maintenance
	if m.BatterySampled {
		if mode, escalated := EscalateForBattery(res.Mode, m.BatteryMillivolts, m.CriticalMillivolts); escalated {
			return Resolution{Mode: mode, Reason: ReasonCriticalBattery}
		}
	}
	if ResyncHourDue(in.Now, m.ResyncHours) {
		return Resolution{Mode: ModeResync, Reason: ReasonResyncHour}
	}
	if m.ResyncEvery > 0 && m.BootCount%m.ResyncEvery == 0 {
		return Resolution{Mode: ModeResync, Reason: ReasonResyncInterval}
	}
	return res
}

func baseMode(in ResolveInput) Resolution {
	if in.Requested.Requestable() {
		return Resolution{Mode: in.Requested, Reason: ReasonRequest}
	}

	switch in.Wake.Source {
	case SourceTimer:
		return Resolution{Mode: ModeNormal, Reason: ReasonTimer}
	case SourcePin:
		// Leaving update mode is done with the same button, so a press
		// right after update mode must not re-enter it.
		if in.Buttons.Update && in.LastMode != ModeUpdate {
			return Resolution{Mode: ModeUpdate, Reason: ReasonUpdatePin}
		}
		if in.Buttons.User {
			return Resolution{Mode: ModeUser, Reason: ReasonUserPin}
		}
	}
	return Resolution{Mode: ModeReset, Reason: ReasonFallback}
}

// EscalateForBattery returns ModeCritical when millivolts is at or below the
// critical threshold. Battery safety wins over every other mode.
func EscalateForBattery(mode Mode, millivolts, critical uint32) (Mode, bool) {
	if millivolts <= critical {
		return ModeCritical, mode != ModeCritical
	}
	return mode, false
}

// ResyncHourDue reports whether t is minute 0 of one of the given hours.
func ResyncHourDue(t time.Time, hours []int) bool {
	if t.Minute() != 0 {
		return false
	}
	for _, h := range hours {
		if t.Hour() == h {
			return true
		}
	}
	return false
}

// UpcomingMinute returns the minute the clock is about to display. A boot
// that starts within omit of the next minute boundary waits for it, so the
// maintenance checks must look at that minute rather than the current one.
func UpcomingMinute(now time.Time, omit time.Duration) time.Time {
	floor := now.Truncate(time.Minute)
	if floor.Add(time.Minute).Sub(now) <= omit {
		return floor.Add(time.Minute)
	}
	return floor
}
