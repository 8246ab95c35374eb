package boot

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sweeney/epaper-clock/internal/display"
	"github.com/sweeney/epaper-clock/internal/errcode"
	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/power"
	"github.com/sweeney/epaper-clock/internal/timesync"
)

// updatePoll is the idle tick while stalled in update mode.
const updatePoll = time.Second

// critical shows the low battery notice and sleeps with every wake source
// disabled. Only a manual reset brings the device back.
func (b *boot) critical(ctx context.Context) error {
	b.release()
	b.frame(b.sched.MessageStyle(), func(d display.Display) {
		d.DrawMessage(display.CriticalMessage)
	})
	b.powerDownDisplay()
	b.setAux(false)

	if err := b.commit(); err != nil {
		return err
	}
	b.Platform.DisableWakeSources()
	b.log.Warn("sleep:shutdown", slog.String("battery", b.st.Warm.BatteryText))
	return b.Platform.EnterDeepSleep(ctx)
}

// update stalls for a firmware update. The update button now requests a
// return to normal; nothing else ends the boot.
func (b *boot) update(ctx context.Context) error {
	if b.LED != nil {
		if err := b.LED.Set(true); err != nil {
			b.log.Warn("led:set-failed", slog.String("err", err.Error()))
		}
	}
	b.watch(logic.PinUpdate, b.requester(logic.ModeNormal))

	b.frame(b.sched.MessageStyle(), func(d display.Display) {
		d.DrawMessage(display.UpdateMessage)
	})
	b.powerDownDisplay()
	if !b.Config.Aux.LED {
		b.setAux(false)
	}

	if err := b.commit(); err != nil {
		return err
	}
	b.log.Info("update:waiting")

	if b.Serve != nil {
		go func() {
			if err := b.Serve(ctx, b.tracker); err != nil {
				b.log.Warn("update:serve-failed", slog.String("err", err.Error()))
			}
		}()
	}

	for {
		if err := b.Delay(ctx, updatePoll); err != nil {
			return err
		}
	}
}

// blank clears the panel before the clock is known.
func (b *boot) blank() {
	b.frame(logic.RefreshFull, func(display.Display) {})
}

// resync sets the clock. Without a sync budget it polls until a server
// answers; with one it gives up and keeps the stale clock.
func (b *boot) resync(ctx context.Context) error {
	syncCtx := ctx
	if b.Config.SyncTimeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, b.Config.SyncTimeout)
		defer cancel()
	}

	res, err := b.poll(syncCtx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		b.log.Warn("sync:abandoned",
			slog.String("code", string(errcode.SyncUnreachable)),
			slog.Duration("budget", b.Config.SyncTimeout),
			slog.String("err", err.Error()))
		return nil
	}

	// The first sync after a reset measures how wrong an unset clock was,
	// not how much the oscillator drifts.
	if b.mode != logic.ModeReset {
		b.st.Warm.Drift = b.st.Warm.Drift.Add(res.Offset)
	}
	at := res.Time
	if at.IsZero() {
		at = b.Now()
	}
	b.st.Cold.LastSync = logic.StampOf(at.In(b.loc))
	b.tracker.SetSync(res.Server, res.Offset, b.st.Warm.Drift, b.st.Cold.LastSync)

	b.log.Info("sync:complete",
		slog.String("server", res.Server),
		slog.Duration("offset", res.Offset),
		slog.Float64("drift_avg", b.st.Warm.Drift.Average),
		slog.String("at", b.st.Cold.LastSync.String()))

	b.report()
	return nil
}

// poll runs the sync client until it reports success or ctx is done. A
// failed attempt is restarted after one tick.
func (b *boot) poll(ctx context.Context) (timesync.Result, error) {
	req := timesync.Request{
		Servers:  b.Config.NTPServers,
		SSID:     b.Config.SSID,
		Password: b.Config.Password,
	}
	begun := false
	defer func() {
		if begun {
			b.Sync.End()
		}
	}()

	for {
		if !begun {
			if err := b.Sync.Begin(ctx, req); err != nil {
				b.log.Warn("sync:begin-failed", slog.String("err", err.Error()))
			} else {
				begun = true
			}
		}
		if begun {
			res := b.Sync.Poll()
			switch res.Status {
			case timesync.Synced:
				return res, nil
			case timesync.Failed:
				attrs := []any{slog.String("server", res.Server)}
				if res.Err != nil {
					attrs = append(attrs, slog.String("err", res.Err.Error()))
				}
				b.log.Warn("sync:attempt-failed", attrs...)
				b.Sync.End()
				begun = false
			}
		}
		if err := b.Delay(ctx, b.Config.LoopTick); err != nil {
			return timesync.Result{}, err
		}
	}
}

// report publishes the boot report. Failures are logged and ignored.
func (b *boot) report() {
	if b.Reports == nil || !b.Config.Telemetry {
		return
	}
	if err := b.Reports.Publish(b.tracker.Snapshot()); err != nil {
		b.log.Warn("report:publish-failed", slog.String("err", err.Error()))
		return
	}
	b.log.Debug("report:published")
}

// user shows a running seconds counter. A second press of the user button
// ends it early; the handler is only armed from the third frame so the
// press that woke the device does not end it at once.
func (b *boot) user(ctx context.Context) error {
	var stop atomic.Bool
	for i := 0; i < b.Config.MaxSeconds && !stop.Load(); i++ {
		if i == 2 {
			b.watch(logic.PinUser, func() { stop.Store(true) })
		}
		now := b.now()
		b.frame(b.sched.LoopStyle(i), func(d display.Display) {
			display.DrawFace(d, display.Face{
				Battery:     b.st.Warm.BatteryText,
				LastSync:    b.st.Cold.LastSync,
				Time:        now,
				ShowSeconds: true,
			})
		})
		for b.now().Second() == now.Second() && !stop.Load() {
			if err := b.Delay(ctx, b.Config.LoopTick); err != nil {
				return err
			}
		}
	}
	b.log.Info("user:done", slog.Bool("stopped", stop.Load()))
	return nil
}

// waitForMinute holds the boot while the next minute boundary is within the
// omit-sleep window, so the face shows the minute that is about to start.
func (b *boot) waitForMinute(ctx context.Context) error {
	for b.sched.ShouldWait(b.now()) {
		if err := b.Delay(ctx, b.Config.LoopTick); err != nil {
			return err
		}
	}
	return nil
}

// finish is the shared tail of every mode that sleeps until the next
// minute: render the face, commit, arm the wake sources and sleep.
func (b *boot) finish(ctx context.Context, p pendingRender) error {
	style := b.sched.RefreshStyle(p.mode, p.last, b.st.Warm.BootCount)
	shown := logic.UpcomingMinute(b.now(), b.Config.OmitSleep)
	b.frame(style, func(d display.Display) {
		display.DrawFace(d, display.Face{
			Battery:  b.st.Warm.BatteryText,
			LastSync: b.st.Cold.LastSync,
			Time:     shown,
		})
	})
	b.powerDownDisplay()
	b.setAux(false)

	b.st.Warm.CurrentMode = p.mode
	if err := b.commit(); err != nil {
		return err
	}

	// The refresh takes a while; the deadline is measured from after it.
	d := b.sched.NextDeadline(b.now())
	b.release()
	b.Platform.ArmTimerWake(d)
	b.Platform.ArmPinWake(logic.PinUpdate, power.LevelLow)
	b.Platform.ArmPinWake(logic.PinUser, power.LevelLow)
	b.tracker.SetNextWake(d)

	b.log.Info("sleep:armed",
		slog.String("mode", p.mode.String()),
		slog.String("style", style.String()),
		slog.String("shown", shown.Format("15:04")),
		slog.Duration("timer", d))

	return b.Platform.EnterDeepSleep(ctx)
}
