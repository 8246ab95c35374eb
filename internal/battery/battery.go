// Package battery samples the cell voltage through a resistor divider.
package battery

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Gauge samples the battery voltage.
type Gauge interface {
	// SampleMillivolts returns the cell voltage in millivolts.
	SampleMillivolts(ctx context.Context) (uint32, error)
	Close() error
}

// Reader returns one raw ADC reading, in millivolts at the ADC pin.
type Reader interface {
	ReadMillivolts() (float64, error)
}

// Oversampled averages several readings from an ADC pin and scales the mean
// by the divider factor.
type Oversampled struct {
	Reader  Reader
	Samples int
	Factor  float64
	closer  func() error
}

// SampleMillivolts implements Gauge.
func (g *Oversampled) SampleMillivolts(ctx context.Context) (uint32, error) {
	n := max(g.Samples, 1)
	var sum float64
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		mv, err := g.Reader.ReadMillivolts()
		if err != nil {
			return 0, fmt.Errorf("read sample %d: %w", i, err)
		}
		sum += mv
	}
	v := sum / float64(n) * g.Factor
	if v < 0 || math.IsNaN(v) {
		return 0, errors.New("read battery: negative voltage")
	}
	return uint32(math.Round(v)), nil
}

// Close releases the underlying ADC.
func (g *Oversampled) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}
