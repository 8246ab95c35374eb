// Package status holds the report of the most recent boot. It is read by
// the update-mode web page, the telemetry publisher and the status command.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// Config contains the settings shown alongside a report.
type Config struct {
	FullRefreshEvery uint32
	BatteryEvery     uint32
	ResyncEvery      uint32
	Refresh          string
	SleepMethod      string
	Broker           string
	HTTPAddr         string
}

// SyncInfo describes the time sync performed by a boot, if any.
type SyncInfo struct {
	Server string
	Offset time.Duration
}

// Snapshot is a point-in-time view of one boot.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	DeviceID  string
	Mode      logic.Mode
	Reason    logic.Reason
	Wake      logic.WakeEvent
	BootCount uint32

	Battery           string
	BatteryMillivolts uint32 // zero when not sampled this boot
	Drift             logic.Drift
	LastSync          logic.SyncStamp
	Sync              *SyncInfo

	BootTime time.Time
	NextWake time.Duration
	Now      time.Time
	Config   Config
}

// Tracker holds the current boot's snapshot behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker for a boot that started at bootTime.
func NewTracker(bootTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{BootTime: bootTime, Config: cfg},
		now:  time.Now,
	}
}

// SetResolution records the boot's mode decision.
func (t *Tracker) SetResolution(wake logic.WakeEvent, res logic.Resolution, bootCount uint32) {
	t.mu.Lock()
	t.snap.Wake = wake
	t.snap.Mode = res.Mode
	t.snap.Reason = res.Reason
	t.snap.BootCount = bootCount
	t.mu.Unlock()
}

// SetMode records a mode change after resolution, such as a battery
// escalation or the user loop falling back to normal.
func (t *Tracker) SetMode(m logic.Mode, reason logic.Reason) {
	t.mu.Lock()
	t.snap.Mode = m
	t.snap.Reason = reason
	t.mu.Unlock()
}

// SetDevice records the device identity.
func (t *Tracker) SetDevice(id string) {
	t.mu.Lock()
	t.snap.DeviceID = id
	t.mu.Unlock()
}

// SetBattery records the status bar text and, when sampled, the voltage.
func (t *Tracker) SetBattery(text string, millivolts uint32) {
	t.mu.Lock()
	t.snap.Battery = text
	t.snap.BatteryMillivolts = millivolts
	t.mu.Unlock()
}

// SetSync records a completed time sync.
func (t *Tracker) SetSync(server string, offset time.Duration, drift logic.Drift, stamp logic.SyncStamp) {
	t.mu.Lock()
	t.snap.Sync = &SyncInfo{Server: server, Offset: offset}
	t.snap.Drift = drift
	t.snap.LastSync = stamp
	t.mu.Unlock()
}

// SetRetained records retained values not produced by this boot.
func (t *Tracker) SetRetained(drift logic.Drift, stamp logic.SyncStamp) {
	t.mu.Lock()
	t.snap.Drift = drift
	t.snap.LastSync = stamp
	t.mu.Unlock()
}

// SetNextWake records the armed wake timer.
func (t *Tracker) SetNextWake(d time.Duration) {
	t.mu.Lock()
	t.snap.NextWake = d
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the boot state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	now := t.now
	t.mu.RUnlock()
	if s.Sync != nil {
		info := *s.Sync
		s.Sync = &info
	}
	s.Now = now()
	return s
}
