package power

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/state"
)

var testBoot = state.BootID{0xaa, 0xbb}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name     string
		record   *state.ExitRecord
		expected logic.WakeEvent
	}{
		{
			name:     "no header",
			expected: logic.WakeEvent{Cause: logic.CauseCold},
		},
		{
			name:     "crashed process",
			record:   &state.ExitRecord{},
			expected: logic.WakeEvent{Cause: logic.CauseCold},
		},
		{
			name:     "restart",
			record:   &state.ExitRecord{Reason: state.ExitRestart},
			expected: logic.WakeEvent{Cause: logic.CauseSoftware},
		},
		{
			name:     "timer wake",
			record:   &state.ExitRecord{Reason: state.ExitSleep, Source: logic.SourceTimer},
			expected: logic.WakeEvent{Cause: logic.CauseSleepWake, Source: logic.SourceTimer},
		},
		{
			name:     "pin wake",
			record:   &state.ExitRecord{Reason: state.ExitSleep, Source: logic.SourcePin, Pin: logic.PinUser},
			expected: logic.WakeEvent{Cause: logic.CauseSleepWake, Source: logic.SourcePin, Pin: logic.PinUser},
		},
		{
			name:     "pin ignored for timer wake",
			record:   &state.ExitRecord{Reason: state.ExitSleep, Source: logic.SourceTimer, Pin: logic.PinUser},
			expected: logic.WakeEvent{Cause: logic.CauseSleepWake, Source: logic.SourceTimer},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := state.NewMemoryRegion(testBoot)
			if tt.record != nil {
				r.StoreExit(*tt.record)
			}
			got := Diagnose(r)
			if got != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestDiagnoseConsumesRecord(t *testing.T) {
	r := state.NewMemoryRegion(testBoot)
	r.StoreExit(state.ExitRecord{Reason: state.ExitRestart})

	if got := Diagnose(r); got.Cause != logic.CauseSoftware {
		t.Fatalf("expected software reset, got %s", got.Cause)
	}
	// A second process without a fresh record must have crashed.
	if got := Diagnose(r); got.Cause != logic.CauseCold {
		t.Errorf("expected cold after consumed record, got %s", got.Cause)
	}
}

func TestDiagnoseAfterPowerCycle(t *testing.T) {
	r := state.NewMemoryRegion(testBoot)
	r.StoreExit(state.ExitRecord{Reason: state.ExitSleep, Source: logic.SourceTimer})
	r.PowerCycle(state.BootID{0x01})

	if got := Diagnose(r); got.Cause != logic.CauseCold {
		t.Errorf("expected cold after power cycle, got %s", got.Cause)
	}
}

// edges is a scripted EdgeSource.
type edges struct {
	mu       sync.Mutex
	buttons  logic.Buttons
	handlers map[logic.PinID]func()
	watched  chan logic.PinID
}

func newEdges() *edges {
	return &edges{handlers: make(map[logic.PinID]func()), watched: make(chan logic.PinID, 4)}
}

func (e *edges) Levels() (logic.Buttons, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buttons, nil
}

func (e *edges) Watch(pin logic.PinID, fn func()) (func(), error) {
	e.mu.Lock()
	e.handlers[pin] = fn
	e.mu.Unlock()
	e.watched <- pin
	return func() {
		e.mu.Lock()
		delete(e.handlers, pin)
		e.mu.Unlock()
	}, nil
}

func (e *edges) press(pin logic.PinID) {
	e.mu.Lock()
	fn := e.handlers[pin]
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type hooks struct {
	execs     int
	suspends  []time.Duration
	powerOffs int
}

func testHost(method SleepMethod, pins EdgeSource) (*Host, *state.Region, *hooks) {
	r := state.NewMemoryRegion(testBoot)
	hk := &hooks{}
	h := newHost(HostConfig{
		Exits:  r,
		Pins:   pins,
		Method: method,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h.exec = func() error { hk.execs++; return nil }
	h.suspend = func(d time.Duration) error { hk.suspends = append(hk.suspends, d); return nil }
	h.powerOff = func() error { hk.powerOffs++; return nil }
	return h, r, hk
}

func TestHostTimerWake(t *testing.T) {
	h, r, hk := testHost(MethodIdle, newEdges())
	h.ArmTimerWake(10 * time.Millisecond)

	if err := h.EnterDeepSleep(context.Background()); err != nil {
		t.Fatalf("EnterDeepSleep: %v", err)
	}
	if hk.execs != 1 {
		t.Errorf("expected one exec, got %d", hk.execs)
	}
	rec, ok := r.LoadExit()
	if !ok || rec != (state.ExitRecord{Reason: state.ExitSleep, Source: logic.SourceTimer}) {
		t.Errorf("unexpected exit record %+v ok=%v", rec, ok)
	}
}

func TestHostPinWake(t *testing.T) {
	e := newEdges()
	h, r, _ := testHost(MethodIdle, e)
	h.ArmTimerWake(time.Minute)
	h.ArmPinWake(logic.PinUser, LevelLow)

	go func() {
		<-e.watched
		e.press(logic.PinUser)
	}()

	if err := h.EnterDeepSleep(context.Background()); err != nil {
		t.Fatalf("EnterDeepSleep: %v", err)
	}
	rec, _ := r.LoadExit()
	if rec.Source != logic.SourcePin || rec.Pin != logic.PinUser {
		t.Errorf("expected user pin wake, got %+v", rec)
	}
}

func TestHostHeldButtonWakesImmediately(t *testing.T) {
	e := newEdges()
	e.buttons = logic.Buttons{Update: true}
	h, r, _ := testHost(MethodIdle, e)
	h.ArmTimerWake(time.Minute)
	h.ArmPinWake(logic.PinUpdate, LevelLow)
	h.ArmPinWake(logic.PinUser, LevelLow)

	if err := h.EnterDeepSleep(context.Background()); err != nil {
		t.Fatalf("EnterDeepSleep: %v", err)
	}
	rec, _ := r.LoadExit()
	if rec.Source != logic.SourcePin || rec.Pin != logic.PinUpdate {
		t.Errorf("expected update pin wake, got %+v", rec)
	}
}

func TestHostSuspendWakesEarlyThenWaits(t *testing.T) {
	base := time.Date(2026, 3, 14, 14, 3, 3, 0, time.UTC)
	clock := base
	h, r, hk := testHost(MethodSuspend, newEdges())
	h.now = func() time.Time { return clock }
	h.suspend = func(d time.Duration) error {
		hk.suspends = append(hk.suspends, d)
		clock = clock.Add(d + time.Second)
		return nil
	}
	h.ArmTimerWake(57 * time.Second)

	if err := h.EnterDeepSleep(context.Background()); err != nil {
		t.Fatalf("EnterDeepSleep: %v", err)
	}
	if len(hk.suspends) != 1 || hk.suspends[0] != 56*time.Second {
		t.Errorf("expected one 56s suspend, got %v", hk.suspends)
	}
	rec, _ := r.LoadExit()
	if rec.Source != logic.SourceTimer {
		t.Errorf("expected timer wake, got %+v", rec)
	}
}

func TestHostSuspendSkippedForShortSleep(t *testing.T) {
	h, _, hk := testHost(MethodSuspend, newEdges())
	h.ArmTimerWake(5 * time.Millisecond)
	if err := h.EnterDeepSleep(context.Background()); err != nil {
		t.Fatalf("EnterDeepSleep: %v", err)
	}
	if len(hk.suspends) != 0 {
		t.Errorf("expected no suspend, got %v", hk.suspends)
	}
}

func TestHostIndefiniteSleep(t *testing.T) {
	for _, method := range []SleepMethod{MethodIdle, MethodSuspend} {
		t.Run(string(method), func(t *testing.T) {
			h, _, hk := testHost(method, newEdges())
			h.ArmTimerWake(time.Second)
			h.ArmPinWake(logic.PinUser, LevelLow)
			h.DisableWakeSources()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := h.EnterDeepSleep(ctx)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("expected to block until the context ended, got %v", err)
			}
			if hk.execs != 0 {
				t.Errorf("expected no exec, got %d", hk.execs)
			}
			wantOff := 0
			if method == MethodSuspend {
				wantOff = 1
			}
			if hk.powerOffs != wantOff {
				t.Errorf("expected %d power offs, got %d", wantOff, hk.powerOffs)
			}
		})
	}
}

func TestHostRestart(t *testing.T) {
	h, r, hk := testHost(MethodIdle, newEdges())
	r.StoreRequest(logic.ModeUser)
	h.Restart()

	if hk.execs != 1 {
		t.Errorf("expected one exec, got %d", hk.execs)
	}
	if got := Diagnose(r); got.Cause != logic.CauseSoftware {
		t.Errorf("expected software reset next boot, got %s", got.Cause)
	}
	if got := r.SwapRequest(logic.ModeNone); got != uint32(logic.ModeUser) {
		t.Errorf("expected request to survive restart, got %d", got)
	}
}

func TestLoopbackHost(t *testing.T) {
	r := state.NewMemoryRegion(testBoot)
	nexts := 0
	h := NewLoopbackHost(HostConfig{Exits: r, Pins: newEdges()}, func() { nexts++ })

	h.ArmTimerWake(time.Millisecond)
	if err := h.EnterDeepSleep(context.Background()); err != nil {
		t.Fatalf("EnterDeepSleep: %v", err)
	}
	if got := Diagnose(r); got.Source != logic.SourceTimer {
		t.Errorf("expected timer wake, got %+v", got)
	}

	h.Restart()
	if got := Diagnose(r); got.Cause != logic.CauseSoftware {
		t.Errorf("expected software reset, got %s", got.Cause)
	}
	if nexts != 2 {
		t.Errorf("expected next called for wake and restart, got %d", nexts)
	}
}

func TestParseSleepMethod(t *testing.T) {
	if m, ok := ParseSleepMethod("suspend"); !ok || m != MethodSuspend {
		t.Errorf("expected suspend, got %q ok=%v", m, ok)
	}
	if _, ok := ParseSleepMethod("hibernate"); ok {
		t.Error("expected unknown method to be rejected")
	}
}
