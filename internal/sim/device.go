// Package sim runs consecutive boots of the clock inside one process, on
// simulated peripherals and the real wall clock.
package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/epaper-clock/internal/boot"
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

// Defaults for a simulated device.
const (
	DefaultMillivolts = 4000
	DefaultSyncDelay  = 2 * time.Second
	DefaultHold       = 300 * time.Millisecond

	minMillivolts = 3000
	maxMillivolts = 4300

	keptFrames = 8
)

// Options configures a Device.
type Options struct {
	Config     config.Config
	Millivolts uint32
	// SyncDelay is how long each time sync takes to answer, and Offset the
	// correction it reports.
	SyncDelay time.Duration
	Offset    time.Duration
	// Hold is how long a press keeps its button down.
	Hold    time.Duration
	Logger  *slog.Logger
	OnEvent func(Event)
}

// EventKind tells what an Event reports.
type EventKind uint8

const (
	EventFrame EventKind = iota
	EventBootEnded
	EventPowerCycle
)

// Event is sent to Options.OnEvent from the boot goroutine.
type Event struct {
	Kind     EventKind
	Boot     int
	Frame    display.Frame
	Snapshot status.Snapshot
	LED      bool
	Err      error
}

// Device is one simulated clock.
type Device struct {
	opts   Options
	logger *slog.Logger

	region  *state.Region
	cold    *state.FakeCold
	buttons *gpio.FakeButtons
	aux     *gpio.FakeOutput
	led     *gpio.FakeOutput
	cell    *cell
	display *display.FakeDisplay
	reports *mqtt.FakePublisher
	host    *power.Host

	mu      sync.Mutex
	cancel  context.CancelFunc
	tracker *status.Tracker
	boots   int
	held    logic.Buttons
	pulled  bool
}

// NewDevice creates a powered-off device. Its first boot is a cold one.
func NewDevice(opts Options) *Device {
	if opts.Millivolts == 0 {
		opts.Millivolts = DefaultMillivolts
	}
	if opts.Hold == 0 {
		opts.Hold = DefaultHold
	}
	// A loopback host can only idle.
	opts.Config.SleepMethod = string(power.MethodIdle)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Device{
		opts:    opts,
		logger:  logger,
		region:  state.NewMemoryRegion(newBootID()),
		cold:    &state.FakeCold{},
		buttons: gpio.NewFakeButtons(logic.Buttons{}),
		aux:     &gpio.FakeOutput{},
		led:     &gpio.FakeOutput{},
		cell:    &cell{},
		display: display.NewFakeDisplay(),
		reports: mqtt.NewFakePublisher(),
	}
	d.cell.mv.Store(opts.Millivolts)
	d.host = power.NewLoopbackHost(power.HostConfig{
		Exits:  d.region,
		Pins:   d.buttons,
		Method: power.MethodIdle,
		Logger: logger,
	}, d.endBoot)
	d.display.OnEndFrame = d.frameDone
	return d
}

func newBootID() state.BootID {
	return state.BootID(uuid.New())
}

// Run boots the device over and over until ctx is done.
func (d *Device) Run(ctx context.Context) error {
	for {
		bootCtx, cancel := context.WithCancel(ctx)
		tracker := status.NewTracker(time.Now(), status.Config{
			FullRefreshEvery: d.opts.Config.FullRefreshEvery,
			BatteryEvery:     d.opts.Config.BatteryEvery,
			ResyncEvery:      d.opts.Config.ResyncEvery,
			Refresh:          d.opts.Config.Refresh,
			SleepMethod:      d.opts.Config.SleepMethod,
		})
		d.mu.Lock()
		d.cancel = cancel
		d.tracker = tracker
		d.boots++
		n := d.boots
		d.mu.Unlock()

		d.logger.Info("sim:boot", slog.Int("boot", n))
		err := d.controller(tracker).Run(bootCtx)
		cancel()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		d.emit(Event{Kind: EventBootEnded, Boot: n, Snapshot: tracker.Snapshot(), Err: err})

		if err != nil {
			// A real device would be reset by its watchdog.
			d.logger.Error("sim:boot-failed", slog.Int("boot", n), slog.String("err", err.Error()))
			if err := sleepContext(ctx, time.Second); err != nil {
				return nil
			}
		}

		if d.takePulled() {
			d.region.PowerCycle(newBootID())
			d.logger.Info("sim:power-cycled")
			d.emit(Event{Kind: EventPowerCycle, Boot: n})
		}
	}
}

func (d *Device) controller(tracker *status.Tracker) *boot.Controller {
	return &boot.Controller{
		Config:   d.opts.Config,
		Store:    state.NewStore(d.region, d.cold),
		Exits:    d.region,
		Buttons:  d.buttons,
		Aux:      d.aux,
		LED:      d.led,
		Gauge:    d.cell,
		Sync:     &delayedSync{delay: d.opts.SyncDelay, offset: d.opts.Offset},
		Display:  d.display,
		Platform: d.host,
		Reports:  d.reports,
		Tracker:  tracker,
		Logger:   d.logger,
	}
}

// endBoot is the loopback exec: it ends the running boot.
func (d *Device) endBoot() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (d *Device) frameDone(f display.Frame) {
	if n := len(d.display.Frames); n > keptFrames {
		d.display.Frames = append(d.display.Frames[:0], d.display.Frames[n-keptFrames:]...)
	}
	d.mu.Lock()
	tracker, n := d.tracker, d.boots
	d.mu.Unlock()
	ev := Event{Kind: EventFrame, Boot: n, Frame: f, LED: d.led.On}
	if tracker != nil {
		ev.Snapshot = tracker.Snapshot()
	}
	d.emit(ev)
}

func (d *Device) emit(ev Event) {
	if d.opts.OnEvent != nil {
		d.opts.OnEvent(ev)
	}
}

// Press holds pin down for the configured time and fires its edge.
func (d *Device) Press(pin logic.PinID) {
	d.setHeld(pin, true)
	d.buttons.Press(pin)
	time.AfterFunc(d.opts.Hold, func() { d.setHeld(pin, false) })
}

func (d *Device) setHeld(pin logic.PinID, down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch pin {
	case logic.PinUpdate:
		d.held.Update = down
	case logic.PinUser:
		d.held.User = down
	}
	d.buttons.SetState(d.held)
}

// PullBattery cuts the power. The running boot ends and the warm region is
// lost; the next boot is a cold one.
func (d *Device) PullBattery() {
	d.mu.Lock()
	d.pulled = true
	d.mu.Unlock()
	d.endBoot()
}

func (d *Device) takePulled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pulled
	d.pulled = false
	return p
}

// AdjustBattery changes the cell voltage by delta millivolts and returns
// the new value.
func (d *Device) AdjustBattery(delta int) uint32 {
	for {
		old := d.cell.mv.Load()
		mv := min(max(int(old)+delta, minMillivolts), maxMillivolts)
		if d.cell.mv.CompareAndSwap(old, uint32(mv)) {
			return uint32(mv)
		}
	}
}

// Millivolts returns the current cell voltage.
func (d *Device) Millivolts() uint32 {
	return d.cell.mv.Load()
}

// Reports returns the number of telemetry reports published so far.
func (d *Device) Reports() int {
	return d.reports.Count()
}

// cell is a battery whose voltage is set from the keyboard.
type cell struct {
	mv atomic.Uint32
}

func (c *cell) SampleMillivolts(context.Context) (uint32, error) {
	return c.mv.Load(), nil
}

func (c *cell) Close() error { return nil }

// delayedSync answers after a fixed delay without touching the clock.
type delayedSync struct {
	delay   time.Duration
	offset  time.Duration
	started time.Time
}

func (s *delayedSync) Begin(ctx context.Context, req timesync.Request) error {
	s.started = time.Now()
	return nil
}

func (s *delayedSync) Poll() timesync.Result {
	if time.Since(s.started) < s.delay {
		return timesync.Result{Status: timesync.Pending}
	}
	return timesync.Result{Status: timesync.Synced, Time: time.Now(), Offset: s.offset, Server: "simulated"}
}

func (s *delayedSync) End() {}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
