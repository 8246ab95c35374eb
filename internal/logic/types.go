// Package logic contains the pure decision logic of the clock: which mode a
// boot runs in, how the next frame is refreshed and when the next wake is due.
// This package has NO hardware dependencies (no GPIO, storage, network, or
// time.Sleep). Time is always injectable via time.Time parameters.
package logic

import "fmt"

// Mode is the exclusive operating behaviour selected for one boot cycle.
type Mode uint8

const (
	// ModeNone is the empty request. It is never the resolved mode of a boot.
	ModeNone Mode = iota
	ModeReset
	ModeNormal
	ModeResync
	ModeUser
	ModeUpdate
	ModeCritical
)

var modeNames = [...]string{
	ModeNone:     "NONE",
	ModeReset:    "RESET",
	ModeNormal:   "NORMAL",
	ModeResync:   "RESYNC",
	ModeUser:     "USER",
	ModeUpdate:   "UPDATE",
	ModeCritical: "CRITICAL",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("MODE(%d)", uint8(m))
}

// Valid reports whether m is one of the defined modes, excluding ModeNone.
func (m Mode) Valid() bool {
	return m > ModeNone && m <= ModeCritical
}

// Requestable reports whether m may be queued by an interrupt handler for
// the next boot.
func (m Mode) Requestable() bool {
	switch m {
	case ModeNormal, ModeUpdate, ModeUser, ModeReset:
		return true
	}
	return false
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return ModeNone, fmt.Errorf("unknown mode %q", s)
}

// NormalizeRequest converts a raw request word read back from warm memory
// into a mode. Anything that is not a requestable mode, including garbage
// left behind by an interrupted write, is treated as no request.
func NormalizeRequest(raw uint32) (Mode, bool) {
	if raw == uint32(ModeNone) {
		return ModeNone, true
	}
	if raw > uint32(ModeCritical) {
		return ModeNone, false
	}
	m := Mode(raw)
	if !m.Requestable() {
		return ModeNone, false
	}
	return m, true
}

// ResetCause describes why the current process started.
type ResetCause uint8

const (
	// CauseCold is a power-on (or any reset that did not preserve warm memory).
	CauseCold ResetCause = iota
	// CauseSoftware is a restart requested by the controller itself.
	CauseSoftware
	// CauseSleepWake is the end of a deep sleep.
	CauseSleepWake
)

func (c ResetCause) String() string {
	switch c {
	case CauseCold:
		return "COLD"
	case CauseSoftware:
		return "SOFTWARE"
	case CauseSleepWake:
		return "SLEEP_WAKE"
	default:
		return fmt.Sprintf("CAUSE(%d)", uint8(c))
	}
}

// WakeSource is the condition credited with ending the last deep sleep.
type WakeSource uint8

const (
	SourceNone WakeSource = iota
	SourceTimer
	SourcePin
)

func (s WakeSource) String() string {
	switch s {
	case SourceNone:
		return "NONE"
	case SourceTimer:
		return "TIMER"
	case SourcePin:
		return "PIN"
	default:
		return fmt.Sprintf("SOURCE(%d)", uint8(s))
	}
}

// PinID names one of the two button lines.
type PinID uint8

const (
	PinNone PinID = iota
	PinUpdate
	PinUser
)

func (p PinID) String() string {
	switch p {
	case PinUpdate:
		return "update"
	case PinUser:
		return "user"
	default:
		return "none"
	}
}

// WakeEvent is produced once per boot by the platform and never mutated.
type WakeEvent struct {
	Cause  ResetCause
	Source WakeSource
	Pin    PinID // only meaningful when Source == SourcePin
}

// Buttons holds the logical (pressed) state of the two buttons at boot.
// Both buttons are active low, so pressed means the raw level reads low.
type Buttons struct {
	Update bool
	User   bool
}

// RefreshStyle is the e-paper update style for one frame.
type RefreshStyle uint8

const (
	RefreshFull RefreshStyle = iota
	RefreshPartial
)

func (r RefreshStyle) String() string {
	if r == RefreshPartial {
		return "PARTIAL"
	}
	return "FULL"
}

// RefreshPolicy is the configured preference for partial refreshes.
type RefreshPolicy uint8

const (
	// PolicyNever always refreshes fully. Used when the display is powered
	// from the switched aux rail and loses its frame buffer every sleep.
	PolicyNever RefreshPolicy = iota
	// PolicyTransitions allows partial refreshes for the mode transitions
	// listed in PartialTransition.
	PolicyTransitions
	// PolicyAlways prefers partial refreshes for every frame.
	PolicyAlways
)

// ParseRefreshPolicy accepts "never", "transitions" or "always".
func ParseRefreshPolicy(s string) (RefreshPolicy, error) {
	switch s {
	case "never":
		return PolicyNever, nil
	case "transitions":
		return PolicyTransitions, nil
	case "always":
		return PolicyAlways, nil
	}
	return PolicyNever, fmt.Errorf("unknown refresh policy %q", s)
}

func (p RefreshPolicy) String() string {
	switch p {
	case PolicyNever:
		return "never"
	case PolicyTransitions:
		return "transitions"
	case PolicyAlways:
		return "always"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}
