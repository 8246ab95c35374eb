package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// ReportJSON is the top-level JSON envelope for a boot report.
type ReportJSON struct {
	Report ReportInner `json:"report"`
}

// ReportInner contains the report details.
type ReportInner struct {
	UUID              string     `json:"uuid"`
	Mode              string     `json:"mode"`
	Reason            string     `json:"reason"`
	Cause             string     `json:"cause"`
	Source            string     `json:"source"`
	Pin               string     `json:"pin,omitempty"`
	BootCount         uint32     `json:"bootCount"`
	BatteryLevel      string     `json:"batteryLevel"`
	BatteryMillivolts uint32     `json:"batteryMillivolts,omitempty"`
	TimeShiftAvg      float64    `json:"timeShiftAvg"`
	TimeShiftSamples  uint32     `json:"timeShiftSamples"`
	LastSync          string     `json:"lastSync"`
	Sync              *SyncJSON  `json:"sync,omitempty"`
	BootTime          string     `json:"bootTime"`
	NextWakeMs        int64      `json:"nextWakeMs"`
	Timestamp         string     `json:"timestamp"`
	Config            ConfigJSON `json:"config"`
}

// SyncJSON is the JSON representation of a completed time sync.
type SyncJSON struct {
	Server   string `json:"server"`
	OffsetMs int64  `json:"offsetMs"`
}

// ConfigJSON is the JSON representation of the reported settings.
type ConfigJSON struct {
	FullRefreshEvery uint32 `json:"fullRefreshEvery"`
	BatteryEvery     uint32 `json:"batteryEvery"`
	ResyncEvery      uint32 `json:"resyncEvery"`
	Refresh          string `json:"refresh"`
	SleepMethod      string `json:"sleepMethod"`
	Broker           string `json:"broker,omitempty"`
	HTTPAddr         string `json:"httpAddr,omitempty"`
}

func buildInner(snap Snapshot) ReportInner {
	inner := ReportInner{
		UUID:              snap.DeviceID,
		Mode:              snap.Mode.String(),
		Reason:            string(snap.Reason),
		Cause:             snap.Wake.Cause.String(),
		Source:            snap.Wake.Source.String(),
		BootCount:         snap.BootCount,
		BatteryLevel:      snap.Battery,
		BatteryMillivolts: snap.BatteryMillivolts,
		TimeShiftAvg:      snap.Drift.Average,
		TimeShiftSamples:  snap.Drift.Count,
		LastSync:          snap.LastSync.String(),
		BootTime:          snap.BootTime.UTC().Format(time.RFC3339),
		NextWakeMs:        snap.NextWake.Milliseconds(),
		Timestamp:         snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			FullRefreshEvery: snap.Config.FullRefreshEvery,
			BatteryEvery:     snap.Config.BatteryEvery,
			ResyncEvery:      snap.Config.ResyncEvery,
			Refresh:          snap.Config.Refresh,
			SleepMethod:      snap.Config.SleepMethod,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
	if snap.Wake.Pin != logic.PinNone {
		inner.Pin = snap.Wake.Pin.String()
	}
	if snap.Sync != nil {
		inner.Sync = &SyncJSON{Server: snap.Sync.Server, OffsetMs: snap.Sync.Offset.Milliseconds()}
	}
	return inner
}

// FormatJSON returns the indented JSON report for the web endpoint and the
// status command.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(ReportJSON{Report: buildInner(snap)}, "", "  ")
	return data
}

// FormatReport returns the compact JSON report published as telemetry.
func FormatReport(snap Snapshot) []byte {
	data, _ := json.Marshal(ReportJSON{Report: buildInner(snap)})
	return data
}
