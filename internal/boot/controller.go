// Package boot runs one boot of the clock: it works out why the device is
// awake, decides the mode, runs the mode body and arms the next wake.
package boot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/epaper-clock/internal/battery"
	"github.com/sweeney/epaper-clock/internal/config"
	"github.com/sweeney/epaper-clock/internal/display"
	"github.com/sweeney/epaper-clock/internal/errcode"
	"github.com/sweeney/epaper-clock/internal/gpio"
	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/mqtt"
	"github.com/sweeney/epaper-clock/internal/power"
	"github.com/sweeney/epaper-clock/internal/state"
	"github.com/sweeney/epaper-clock/internal/status"
	"github.com/sweeney/epaper-clock/internal/timesync"
)

// Controller holds the collaborators of a boot. Aux, LED, Gauge, Reports and
// Serve may be nil.
type Controller struct {
	Config   config.Config
	Store    *state.Store
	Exits    state.ExitLog
	Buttons  gpio.Buttons
	Aux      gpio.Output
	LED      gpio.Output
	Gauge    battery.Gauge
	Sync     timesync.Client
	Display  display.Display
	Platform power.Platform
	Reports  mqtt.Publisher
	Tracker  *status.Tracker

	// Serve runs the update-mode status page until ctx is done.
	Serve func(ctx context.Context, tr *status.Tracker) error

	Now    func() time.Time
	Delay  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// boot is the state of a single Run.
type boot struct {
	*Controller
	log     *slog.Logger
	sched   logic.Scheduler
	loc     *time.Location
	tracker *status.Tracker

	wake logic.WakeEvent
	st   state.PersistentState
	mode logic.Mode
	last logic.Mode

	watches []func()
}

// pendingRender is the input of the shared final render: the mode the face
// is drawn for and the mode it is treated as coming from.
type pendingRender struct {
	mode logic.Mode
	last logic.Mode
}

// Run executes one boot. On hardware it ends in deep sleep and does not
// return on success. It returns an error when committing state or entering
// sleep fails, and ctx's error when a restart cancelled the boot.
func (c *Controller) Run(ctx context.Context) error {
	b := c.newBoot()
	b.restore()
	b.resolve()
	b.bind()

	batteryDue := b.st.Warm.BootCount%c.Config.BatteryEvery == 0
	b.setAux(b.auxNeeded(batteryDue))
	if batteryDue {
		b.checkBattery(ctx)
	}

	switch b.mode {
	case logic.ModeCritical:
		return b.critical(ctx)
	case logic.ModeUpdate:
		return b.update(ctx)
	case logic.ModeReset:
		b.blank()
		fallthrough
	case logic.ModeResync:
		if err := b.resync(ctx); err != nil {
			return err
		}
		return b.finish(ctx, pendingRender{mode: b.mode, last: b.last})
	case logic.ModeUser:
		if err := b.user(ctx); err != nil {
			return err
		}
		return b.finish(ctx, pendingRender{mode: logic.ModeNormal, last: logic.ModeNormal})
	default:
		if err := b.waitForMinute(ctx); err != nil {
			return err
		}
		return b.finish(ctx, pendingRender{mode: logic.ModeNormal, last: b.last})
	}
}

func (c *Controller) newBoot() *boot {
	b := &boot{
		Controller: c,
		log:        c.Logger,
		sched:      c.Config.Scheduler(),
		loc:        c.Config.Location(),
		tracker:    c.Tracker,
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if b.Now == nil {
		b.Now = time.Now
	}
	if b.Delay == nil {
		b.Delay = sleepContext
	}
	if b.tracker == nil {
		b.tracker = status.NewTracker(b.Now(), status.Config{})
	}
	return b
}

func (b *boot) now() time.Time {
	return b.Now().In(b.loc)
}

// restore loads the wake event and the retained state.
func (b *boot) restore() {
	b.wake = power.Diagnose(b.Exits)

	st, err := b.Store.Restore(b.wake.Cause)
	if err != nil {
		b.log.Warn("state:defaulted",
			slog.String("code", string(errcode.Of(err))),
			slog.String("err", err.Error()))
	}
	b.st = st
	b.last = st.Warm.CurrentMode

	if b.wake.Cause == logic.CauseCold {
		b.st.Warm.BootCount = 0
	} else {
		b.st.Warm.BootCount++
	}
	b.tracker.SetDevice(st.Cold.DeviceID)
	b.tracker.SetBattery(b.st.Warm.BatteryText, 0)
	b.tracker.SetRetained(b.st.Warm.Drift, b.st.Cold.LastSync)
}

// resolve consumes the pending request and picks the mode.
func (b *boot) resolve() {
	raw := b.Store.Warm.SwapRequest(logic.ModeNone)
	requested, valid := logic.NormalizeRequest(raw)
	if !valid && b.wake.Cause != logic.CauseCold {
		b.log.Warn("boot:request-ignored",
			slog.String("code", string(errcode.InvalidRequestedMode)),
			slog.Uint64("raw", uint64(raw)))
	}

	buttons, err := b.Buttons.Levels()
	if err != nil {
		b.log.Warn("boot:buttons-unreadable", slog.String("err", err.Error()))
		buttons = logic.Buttons{}
	}

	res := logic.Resolve(logic.ResolveInput{
		Wake:      b.wake,
		Buttons:   buttons,
		Requested: requested,
		LastMode:  b.last,
		Now:       logic.UpcomingMinute(b.now(), b.Config.OmitSleep),
		Maintenance: logic.Maintenance{
			BootCount:          b.st.Warm.BootCount,
			ResyncEvery:        b.Config.ResyncEvery,
			ResyncHours:        b.Config.ResyncHours,
			CriticalMillivolts: b.Config.Critical,
		},
	})
	b.mode = res.Mode
	b.st.Warm.CurrentMode = res.Mode
	b.tracker.SetResolution(b.wake, res, b.st.Warm.BootCount)

	b.log.Info("boot:mode-resolved",
		slog.String("mode", res.Mode.String()),
		slog.String("reason", string(res.Reason)),
		slog.String("last", b.last.String()),
		slog.String("cause", b.wake.Cause.String()),
		slog.String("source", b.wake.Source.String()),
		slog.Uint64("boot_count", uint64(b.st.Warm.BootCount)))
}

// bind installs the button trampolines for the resolved mode.
func (b *boot) bind() {
	if b.mode != logic.ModeUpdate {
		b.watch(logic.PinUpdate, b.requester(logic.ModeUpdate))
	}
	switch b.mode {
	case logic.ModeNormal, logic.ModeResync:
		b.watch(logic.PinUser, b.requester(logic.ModeUser))
	}
}

// requester returns an interrupt handler that stashes m and restarts. It
// must not touch anything but the request word.
func (b *boot) requester(m logic.Mode) func() {
	return func() {
		b.Store.Warm.StoreRequest(m)
		b.Platform.Restart()
	}
}

func (b *boot) watch(pin logic.PinID, fn func()) {
	cancel, err := b.Buttons.Watch(pin, fn)
	if err != nil {
		b.log.Warn("boot:bind-failed", slog.String("pin", pin.String()), slog.String("err", err.Error()))
		return
	}
	b.watches = append(b.watches, cancel)
}

func (b *boot) release() {
	for _, cancel := range b.watches {
		cancel()
	}
	b.watches = nil
}

func (b *boot) auxNeeded(batteryDue bool) bool {
	aux := b.Config.Aux
	return aux.Display ||
		(aux.Battery && batteryDue && b.Gauge != nil) ||
		(aux.LED && b.mode == logic.ModeUpdate)
}

func (b *boot) setAux(on bool) {
	if b.Aux == nil {
		return
	}
	if err := b.Aux.Set(on); err != nil {
		b.log.Warn("aux:set-failed", slog.Bool("on", on), slog.String("err", err.Error()))
	}
}

// checkBattery samples the cell and escalates to critical when it is at or
// below the threshold.
func (b *boot) checkBattery(ctx context.Context) {
	if b.Gauge == nil {
		return
	}
	mv, err := b.Gauge.SampleMillivolts(ctx)
	if err != nil {
		b.log.Warn("battery:sample-failed", slog.String("err", err.Error()))
		return
	}
	pct := logic.BatteryPercent(mv, b.Config.FullTolerance)
	b.st.Warm.BatteryText = logic.BatteryText(pct)
	b.tracker.SetBattery(b.st.Warm.BatteryText, mv)
	b.log.Info("battery:sampled", slog.Uint64("mv", uint64(mv)), slog.Int("pct", pct))

	mode, escalated := logic.EscalateForBattery(b.mode, mv, b.Config.Critical)
	if !escalated {
		return
	}
	b.log.Warn("battery:critical",
		slog.String("code", string(errcode.CriticalBattery)),
		slog.String("was", b.mode.String()),
		slog.Uint64("mv", uint64(mv)))
	b.mode = mode
	b.st.Warm.CurrentMode = mode
	b.tracker.SetMode(mode, logic.ReasonCriticalBattery)
}

// commit persists the state. It must precede sleep entry.
func (b *boot) commit() error {
	if err := b.Store.Commit(b.st); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

// frame draws one frame. Display failures are logged; the boot carries on
// to sleep regardless.
func (b *boot) frame(style logic.RefreshStyle, draw func(d display.Display)) {
	if err := b.Display.BeginFrame(style); err != nil {
		b.log.Warn("display:begin-failed", slog.String("err", err.Error()))
		return
	}
	draw(b.Display)
	if err := b.Display.EndFrame(); err != nil {
		b.log.Warn("display:end-failed", slog.String("err", err.Error()))
	}
}

func (b *boot) powerDownDisplay() {
	if err := b.Display.PowerDown(); err != nil {
		b.log.Warn("display:power-down-failed", slog.String("err", err.Error()))
	}
}

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
