package battery

import "context"

// FakeGauge returns a scripted voltage.
type FakeGauge struct {
	Millivolts uint32

	// SampleError, if set, will be returned by SampleMillivolts()
	SampleError error

	// Samples counts SampleMillivolts calls, Closed tracks Close.
	Samples int
	Closed  bool
}

// SampleMillivolts implements Gauge.
func (f *FakeGauge) SampleMillivolts(ctx context.Context) (uint32, error) {
	f.Samples++
	if f.SampleError != nil {
		return 0, f.SampleError
	}
	return f.Millivolts, nil
}

// Close implements Gauge.
func (f *FakeGauge) Close() error {
	f.Closed = true
	return nil
}
