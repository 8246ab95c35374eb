package sim

import (
	"context"
	"testing"
	"time"

	"github.com/sweeney/epaper-clock/internal/config"
	"github.com/sweeney/epaper-clock/internal/logic"
)

const eventTimeout = 10 * time.Second

func newTestDevice(t *testing.T) (*Device, <-chan Event, context.CancelFunc) {
	t.Helper()
	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.LoopTick = 10 * time.Millisecond
	cfg.OmitSleep = 0

	events := make(chan Event, 64)
	dev := NewDevice(Options{
		Config: cfg,
		Hold:   2 * time.Second,
		OnEvent: func(ev Event) {
			events <- ev
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dev.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(eventTimeout):
			t.Error("Run did not return after cancel")
		}
	})
	return dev, events, cancel
}

// next returns the first event matching pred.
func next(t *testing.T, events <-chan Event, what string, pred func(Event) bool) Event {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev := <-events:
			if pred(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func isFrame(op string) func(Event) bool {
	return func(ev Event) bool {
		return ev.Kind == EventFrame && (op == "" || hasPrefix(ev.Frame.Ops, op))
	}
}

func hasPrefix(ops []string, prefix string) bool {
	for _, o := range ops {
		if len(o) >= len(prefix) && o[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func TestDeviceColdBootShowsFace(t *testing.T) {
	dev, events, _ := newTestDevice(t)

	blank := next(t, events, "blank frame", isFrame(""))
	if len(blank.Frame.Ops) != 0 {
		t.Errorf("expected a blank first frame, got %v", blank.Frame.Ops)
	}
	if blank.Snapshot.Mode != logic.ModeReset {
		t.Errorf("expected RESET, got %s", blank.Snapshot.Mode)
	}

	face := next(t, events, "face frame", isFrame("time "))
	if face.Boot != 1 {
		t.Errorf("expected boot 1, got %d", face.Boot)
	}
	if !hasPrefix(face.Frame.Ops, "status ") {
		t.Errorf("expected a status bar, got %v", face.Frame.Ops)
	}
	if face.Frame.Image == nil {
		t.Error("expected a rendered image")
	}
	if dev.Reports() != 1 {
		t.Errorf("expected 1 report after the first sync, got %d", dev.Reports())
	}
}

func TestDevicePullBatteryColdBoots(t *testing.T) {
	dev, events, _ := newTestDevice(t)
	next(t, events, "face frame", isFrame("time "))

	dev.PullBattery()
	next(t, events, "power cycle", func(ev Event) bool { return ev.Kind == EventPowerCycle })

	blank := next(t, events, "second blank frame", isFrame(""))
	if blank.Boot < 2 {
		t.Errorf("expected a later boot, got %d", blank.Boot)
	}
	if blank.Snapshot.Mode != logic.ModeReset || blank.Snapshot.Reason != logic.ReasonColdBoot {
		t.Errorf("expected RESET after power cycle, got %s (%s)", blank.Snapshot.Mode, blank.Snapshot.Reason)
	}
}

func TestDeviceUpdateButtonWakes(t *testing.T) {
	dev, events, _ := newTestDevice(t)
	next(t, events, "face frame", isFrame("time "))

	dev.Press(logic.PinUpdate)
	ev := next(t, events, "update message", isFrame("message update"))
	if ev.Snapshot.Mode != logic.ModeUpdate {
		t.Errorf("expected UPDATE, got %s", ev.Snapshot.Mode)
	}
	if !ev.LED {
		t.Error("expected the LED on in update mode")
	}
}

func TestAdjustBatteryClamps(t *testing.T) {
	dev := NewDevice(Options{Config: config.Default()})
	if mv := dev.AdjustBattery(-5000); mv != minMillivolts {
		t.Errorf("expected %d, got %d", minMillivolts, mv)
	}
	if mv := dev.AdjustBattery(5000); mv != maxMillivolts {
		t.Errorf("expected %d, got %d", maxMillivolts, mv)
	}
	dev.AdjustBattery(-300)
	if dev.Millivolts() != maxMillivolts-300 {
		t.Errorf("expected %d, got %d", maxMillivolts-300, dev.Millivolts())
	}
}
