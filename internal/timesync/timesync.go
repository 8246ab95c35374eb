// Package timesync sets the system clock from SNTP servers.
package timesync

import (
	"context"
	"time"
)

// Status is the state of a running sync.
type Status uint8

const (
	Pending Status = iota
	Synced
	Failed
)

func (s Status) String() string {
	switch s {
	case Synced:
		return "synced"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Request describes one sync.
type Request struct {
	Servers []string
	// SSID and Password name the network to sync over. On Linux the
	// network itself is managed by the system; the client only waits for
	// a server to answer.
	SSID     string
	Password string
}

// Result is returned by Poll.
type Result struct {
	Status Status
	// Time is the corrected wall clock at the moment of sync.
	Time time.Time
	// Offset is the correction applied to the local clock. Positive means
	// the local clock was behind.
	Offset time.Duration
	Server string
	Err    error
}

// Client performs a sync in the background while the caller polls.
type Client interface {
	// Begin starts a sync. It does not block.
	Begin(ctx context.Context, req Request) error
	// Poll returns the current state of the sync started by Begin.
	Poll() Result
	// End stops the sync and releases its resources.
	End()
}
