// Package mqtt publishes boot reports with abstraction for testing.
package mqtt

import (
	"github.com/sweeney/epaper-clock/internal/status"
)

// TopicPrefix is the root of every device's topics.
const TopicPrefix = "epaper-clock"

// Publisher publishes boot reports.
type Publisher interface {
	// Publish sends the report to the broker. Returns error if publishing
	// fails; callers log it and carry on.
	Publish(snap status.Snapshot) error

	// Close disconnects from the broker.
	Close() error
}

// ReportTopic returns the report topic for a device.
func ReportTopic(deviceID string) string {
	if deviceID == "" {
		deviceID = "unknown"
	}
	return TopicPrefix + "/" + deviceID + "/report"
}

// Nop discards every report. Used when telemetry is disabled.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(status.Snapshot) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
