package timesync

import (
	"context"
	"sync"
)

// FakeClient is a test double that returns scripted poll results.
type FakeClient struct {
	mu sync.Mutex

	// Results contains scripted values returned by Poll. Each call consumes
	// the next one; the last is repeated.
	Results []Result
	index   int

	// BeginError, if set, will be returned by Begin()
	BeginError error

	// Requests records every Begin call; Polls and Ends count calls.
	Requests []Request
	Polls    int
	Ends     int
}

// Begin implements Client.
func (f *FakeClient) Begin(ctx context.Context, req Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BeginError != nil {
		return f.BeginError
	}
	f.Requests = append(f.Requests, req)
	return nil
}

// Poll implements Client.
func (f *FakeClient) Poll() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Polls++
	if len(f.Results) == 0 {
		return Result{Status: Pending}
	}
	r := f.Results[f.index]
	if f.index < len(f.Results)-1 {
		f.index++
	}
	return r
}

// End implements Client.
func (f *FakeClient) End() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ends++
}
