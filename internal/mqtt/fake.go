package mqtt

import (
	"sync"

	"github.com/sweeney/epaper-clock/internal/status"
)

// FakePublisher records published reports for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Reports contains all reports that were published.
	Reports []status.Snapshot

	// Topics contains the topic of each published report.
	Topics []string

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the report.
func (f *FakePublisher) Publish(snap status.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Reports = append(f.Reports, snap)
	f.Topics = append(f.Topics, ReportTopic(snap.DeviceID))
	f.Payloads = append(f.Payloads, status.FormatReport(snap))
	return nil
}

// Count returns the number of published reports.
func (f *FakePublisher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Reports)
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset clears recorded reports.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reports = nil
	f.Topics = nil
	f.Payloads = nil
	f.Closed = false
	f.PublishError = nil
}
