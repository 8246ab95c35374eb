package logic

import (
	"testing"
	"time"
)

var midMinute = time.Date(2026, 3, 14, 14, 3, 20, 0, time.UTC)

func sleepWake(source WakeSource) WakeEvent {
	return WakeEvent{Cause: CauseSleepWake, Source: source}
}

func TestResolveColdBootAlwaysReset(t *testing.T) {
	requests := []Mode{ModeNone, ModeNormal, ModeUpdate, ModeUser, ModeReset, ModeCritical}
	sources := []WakeSource{SourceNone, SourceTimer, SourcePin}

	for _, req := range requests {
		for _, src := range sources {
			in := ResolveInput{
				Wake:      WakeEvent{Cause: CauseCold, Source: src},
				Buttons:   Buttons{Update: true, User: true},
				Requested: req,
				LastMode:  ModeNormal,
				Now:       midMinute,
			}
			res := Resolve(in)
			if res.Mode != ModeReset {
				t.Errorf("request=%s source=%s: expected RESET, got %s", req, src, res.Mode)
			}
			if res.Reason != ReasonColdBoot {
				t.Errorf("request=%s source=%s: expected reason %s, got %s", req, src, ReasonColdBoot, res.Reason)
			}
		}
	}
}

func TestResolveAdoptsValidRequest(t *testing.T) {
	for _, cause := range []ResetCause{CauseSoftware, CauseSleepWake} {
		for _, req := range []Mode{ModeNormal, ModeUpdate, ModeUser, ModeReset} {
			in := ResolveInput{
				Wake:      WakeEvent{Cause: cause, Source: SourceTimer},
				Requested: req,
				LastMode:  ModeNormal,
				Now:       midMinute,
			}
			res := Resolve(in)
			if res.Mode != req {
				t.Errorf("cause=%s: requested %s, got %s", cause, req, res.Mode)
			}
			if res.Reason != ReasonRequest {
				t.Errorf("cause=%s request=%s: expected reason request, got %s", cause, req, res.Reason)
			}
		}
	}
}

func TestResolveWakeSources(t *testing.T) {
	tests := []struct {
		name     string
		wake     WakeEvent
		buttons  Buttons
		lastMode Mode
		expected Mode
		reason   Reason
	}{
		{
			name:     "timer",
			wake:     sleepWake(SourceTimer),
			lastMode: ModeNormal,
			expected: ModeNormal,
			reason:   ReasonTimer,
		},
		{
			name:     "update pin",
			wake:     WakeEvent{Cause: CauseSleepWake, Source: SourcePin, Pin: PinUpdate},
			buttons:  Buttons{Update: true},
			lastMode: ModeNormal,
			expected: ModeUpdate,
			reason:   ReasonUpdatePin,
		},
		{
			name:     "update pin outranks user pin",
			wake:     sleepWake(SourcePin),
			buttons:  Buttons{Update: true, User: true},
			lastMode: ModeNormal,
			expected: ModeUpdate,
			reason:   ReasonUpdatePin,
		},
		{
			name:     "update pin debounced after update mode falls to user",
			wake:     sleepWake(SourcePin),
			buttons:  Buttons{Update: true, User: true},
			lastMode: ModeUpdate,
			expected: ModeUser,
			reason:   ReasonUserPin,
		},
		{
			name:     "update pin debounced after update mode falls to reset",
			wake:     sleepWake(SourcePin),
			buttons:  Buttons{Update: true},
			lastMode: ModeUpdate,
			expected: ModeReset,
			reason:   ReasonFallback,
		},
		{
			name:     "user pin",
			wake:     WakeEvent{Cause: CauseSleepWake, Source: SourcePin, Pin: PinUser},
			buttons:  Buttons{User: true},
			lastMode: ModeNormal,
			expected: ModeUser,
			reason:   ReasonUserPin,
		},
		{
			name:     "pin wake with button already released",
			wake:     sleepWake(SourcePin),
			lastMode: ModeNormal,
			expected: ModeReset,
			reason:   ReasonFallback,
		},
		{
			name:     "no source",
			wake:     sleepWake(SourceNone),
			lastMode: ModeNormal,
			expected: ModeReset,
			reason:   ReasonFallback,
		},
		{
			name:     "software reset without request",
			wake:     WakeEvent{Cause: CauseSoftware},
			buttons:  Buttons{User: true},
			lastMode: ModeNormal,
			expected: ModeReset,
			reason:   ReasonFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(ResolveInput{
				Wake:     tt.wake,
				Buttons:  tt.buttons,
				LastMode: tt.lastMode,
				Now:      midMinute,
			})
			if res.Mode != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, res.Mode)
			}
			if res.Reason != tt.reason {
				t.Errorf("expected reason %s, got %s", tt.reason, res.Reason)
			}
		})
	}
}

func TestResolveNormalOverrides(t *testing.T) {
	topOfHour := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		maint    Maintenance
		expected Mode
		reason   Reason
	}{
		{
			name:     "no maintenance due",
			now:      midMinute,
			maint:    Maintenance{BootCount: 7, ResyncEvery: 240, ResyncHours: []int{0}},
			expected: ModeNormal,
			reason:   ReasonTimer,
		},
		{
			name:     "resync hour at minute zero",
			now:      topOfHour,
			maint:    Maintenance{BootCount: 7, ResyncHours: []int{0, 6, 12}},
			expected: ModeResync,
			reason:   ReasonResyncHour,
		},
		{
			name:     "resync hour but not minute zero",
			now:      topOfHour.Add(time.Minute),
			maint:    Maintenance{BootCount: 7, ResyncHours: []int{6}},
			expected: ModeNormal,
			reason:   ReasonTimer,
		},
		{
			name:     "resync interval",
			now:      midMinute,
			maint:    Maintenance{BootCount: 480, ResyncEvery: 240},
			expected: ModeResync,
			reason:   ReasonResyncInterval,
		},
		{
			name:     "resync interval disabled",
			now:      midMinute,
			maint:    Maintenance{BootCount: 480},
			expected: ModeNormal,
			reason:   ReasonTimer,
		},
		{
			name: "critical battery beats resync",
			now:  topOfHour,
			maint: Maintenance{
				BootCount: 240, ResyncEvery: 240, ResyncHours: []int{6},
				BatterySampled: true, BatteryMillivolts: 3490, CriticalMillivolts: 3500,
			},
			expected: ModeCritical,
			reason:   ReasonCriticalBattery,
		},
		{
			name: "critical threshold is inclusive",
			now:  midMinute,
			maint: Maintenance{
				BatterySampled: true, BatteryMillivolts: 3500, CriticalMillivolts: 3500,
			},
			expected: ModeCritical,
			reason:   ReasonCriticalBattery,
		},
		{
			name: "battery not sampled is ignored",
			now:  midMinute,
			maint: Maintenance{
				BatteryMillivolts: 0, CriticalMillivolts: 3500,
			},
			expected: ModeNormal,
			reason:   ReasonTimer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(ResolveInput{
				Wake:        sleepWake(SourceTimer),
				LastMode:    ModeNormal,
				Now:         tt.now,
				Maintenance: tt.maint,
			})
			if res.Mode != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, res.Mode)
			}
			if res.Reason != tt.reason {
				t.Errorf("expected reason %s, got %s", tt.reason, res.Reason)
			}
		})
	}
}

func TestResolveOverridesOnlyApplyToNormal(t *testing.T) {
	maint := Maintenance{BootCount: 240, ResyncEvery: 240}
	res := Resolve(ResolveInput{
		Wake:        WakeEvent{Cause: CauseSoftware},
		Requested:   ModeUser,
		Now:         midMinute,
		Maintenance: maint,
	})
	if res.Mode != ModeUser {
		t.Errorf("expected USER to survive resync interval, got %s", res.Mode)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	in := ResolveInput{
		Wake:        sleepWake(SourcePin),
		Buttons:     Buttons{User: true},
		LastMode:    ModeNormal,
		Now:         midMinute,
		Maintenance: Maintenance{BootCount: 12, ResyncEvery: 240, ResyncHours: []int{3}},
	}
	first := Resolve(in)
	second := Resolve(in)
	if first != second {
		t.Errorf("expected identical resolutions, got %+v and %+v", first, second)
	}
}

func TestNormalizeRequest(t *testing.T) {
	tests := []struct {
		raw   uint32
		mode  Mode
		valid bool
	}{
		{raw: 0, mode: ModeNone, valid: true},
		{raw: uint32(ModeReset), mode: ModeReset, valid: true},
		{raw: uint32(ModeNormal), mode: ModeNormal, valid: true},
		{raw: uint32(ModeUser), mode: ModeUser, valid: true},
		{raw: uint32(ModeUpdate), mode: ModeUpdate, valid: true},
		{raw: uint32(ModeResync), mode: ModeNone, valid: false},
		{raw: uint32(ModeCritical), mode: ModeNone, valid: false},
		{raw: 0xdeadbeef, mode: ModeNone, valid: false},
	}
	for _, tt := range tests {
		mode, valid := NormalizeRequest(tt.raw)
		if mode != tt.mode || valid != tt.valid {
			t.Errorf("raw %#x: expected (%s, %v), got (%s, %v)", tt.raw, tt.mode, tt.valid, mode, valid)
		}
	}
}

func TestEscalateForBattery(t *testing.T) {
	mode, escalated := EscalateForBattery(ModeUser, 3400, 3500)
	if mode != ModeCritical || !escalated {
		t.Errorf("expected escalation to CRITICAL, got %s escalated=%v", mode, escalated)
	}
	mode, escalated = EscalateForBattery(ModeUpdate, 3600, 3500)
	if mode != ModeUpdate || escalated {
		t.Errorf("expected UPDATE unchanged, got %s escalated=%v", mode, escalated)
	}
}

func TestUpcomingMinute(t *testing.T) {
	base := time.Date(2026, 3, 14, 13, 59, 0, 0, time.UTC)
	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{"start of minute", base, base},
		{"mid minute", base.Add(30 * time.Second), base},
		{"just outside window", base.Add(58*time.Second + 999*time.Millisecond), base},
		{"inside window", base.Add(59 * time.Second), base.Add(time.Minute)},
		{"woken by margin", base.Add(59*time.Second + 900*time.Millisecond), base.Add(time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpcomingMinute(tt.now, time.Second)
			if !got.Equal(tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestModeStringRoundTrip(t *testing.T) {
	for m := ModeNone; m <= ModeCritical; m++ {
		parsed, err := ParseMode(m.String())
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", m.String(), err)
		}
		if parsed != m {
			t.Errorf("expected %s, got %s", m, parsed)
		}
	}
	if _, err := ParseMode("SECONDS"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
