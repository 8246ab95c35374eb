package boot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/epaper-clock/internal/battery"
	"github.com/sweeney/epaper-clock/internal/config"
	"github.com/sweeney/epaper-clock/internal/display"
	"github.com/sweeney/epaper-clock/internal/gpio"
	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/mqtt"
	"github.com/sweeney/epaper-clock/internal/power"
	"github.com/sweeney/epaper-clock/internal/state"
	"github.com/sweeney/epaper-clock/internal/status"
	"github.com/sweeney/epaper-clock/internal/timesync"
)

// clock is a manual clock. Delay advances it instead of sleeping.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// settingSync answers after a number of pending polls and sets the clock,
// as the real client sets the system clock.
type settingSync struct {
	clk     *clock
	at      time.Time
	offset  time.Duration
	pending int

	polls, begins, ends int
}

func (s *settingSync) Begin(ctx context.Context, req timesync.Request) error {
	s.begins++
	return nil
}

func (s *settingSync) Poll() timesync.Result {
	s.polls++
	if s.polls <= s.pending {
		return timesync.Result{Status: timesync.Pending}
	}
	s.clk.Set(s.at)
	return timesync.Result{Status: timesync.Synced, Time: s.at, Offset: s.offset, Server: "0.pool.ntp.org"}
}

func (s *settingSync) End() { s.ends++ }

var testBootID = state.BootID{0xb0, 0x07}

// rig wires a Controller to fakes.
type rig struct {
	t *testing.T

	cfg      config.Config
	clk      *clock
	region   *state.Region
	cold     *state.FakeCold
	buttons  *gpio.FakeButtons
	aux      *gpio.FakeOutput
	led      *gpio.FakeOutput
	gauge    *battery.FakeGauge
	sync     timesync.Client
	display  *display.FakeDisplay
	platform *power.FakePlatform
	reports  *mqtt.FakePublisher
	tracker  *status.Tracker

	// refresh is how long each pushed frame takes.
	refresh time.Duration
	// onDelay, if set, runs on every Delay call with its 1-based count.
	onDelay func(n int)
	delays  int
	served  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func newRig(t *testing.T, now time.Time) *rig {
	t.Helper()
	cfg := config.Default()
	cfg.Timezone = "UTC"

	r := &rig{
		t:        t,
		cfg:      cfg,
		clk:      &clock{t: now},
		region:   state.NewMemoryRegion(testBootID),
		cold:     &state.FakeCold{},
		buttons:  gpio.NewFakeButtons(logic.Buttons{}),
		aux:      &gpio.FakeOutput{},
		led:      &gpio.FakeOutput{},
		gauge:    &battery.FakeGauge{Millivolts: 4200},
		sync:     &timesync.FakeClient{},
		display:  display.NewFakeDisplay(),
		platform: power.NewFakePlatform(),
		reports:  mqtt.NewFakePublisher(),
		tracker:  status.NewTracker(now, status.Config{}),
		refresh:  time.Second,
		served:   make(chan struct{}, 1),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	t.Cleanup(r.cancel)
	r.platform.OnRestart = r.cancel
	r.display.OnEndFrame = func(display.Frame) { r.clk.Advance(r.refresh) }
	return r
}

// warm seeds the warm region as a previous boot would have left it, with
// the given exit record.
func (r *rig) warm(w state.WarmState, exit state.ExitRecord) {
	r.t.Helper()
	if err := r.region.WriteWarm(w); err != nil {
		r.t.Fatalf("WriteWarm: %v", err)
	}
	r.region.StoreExit(exit)
}

func (r *rig) controller() *Controller {
	return &Controller{
		Config:   r.cfg,
		Store:    state.NewStore(r.region, r.cold),
		Exits:    r.region,
		Buttons:  r.buttons,
		Aux:      r.aux,
		LED:      r.led,
		Gauge:    r.gauge,
		Sync:     r.sync,
		Display:  r.display,
		Platform: r.platform,
		Reports:  r.reports,
		Tracker:  r.tracker,
		Serve: func(ctx context.Context, tr *status.Tracker) error {
			select {
			case r.served <- struct{}{}:
			default:
			}
			return nil
		},
		Now: r.clk.Now,
		Delay: func(ctx context.Context, d time.Duration) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.delays++
			if r.onDelay != nil {
				r.onDelay(r.delays)
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			r.clk.Advance(d)
			return nil
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (r *rig) run() error {
	r.t.Helper()
	return r.controller().Run(r.ctx)
}

func (r *rig) lastFrame() display.Frame {
	r.t.Helper()
	f, ok := r.display.Last()
	if !ok {
		r.t.Fatal("expected a frame")
	}
	return f
}

func (r *rig) warmState() state.WarmState {
	r.t.Helper()
	w, ok := r.region.ReadWarm()
	if !ok {
		r.t.Fatal("expected valid warm state")
	}
	return w
}

func timerWake() state.ExitRecord {
	return state.ExitRecord{Reason: state.ExitSleep, Source: logic.SourceTimer}
}

func pinWake(pin logic.PinID) state.ExitRecord {
	return state.ExitRecord{Reason: state.ExitSleep, Source: logic.SourcePin, Pin: pin}
}

func restartExit() state.ExitRecord {
	return state.ExitRecord{Reason: state.ExitRestart}
}
