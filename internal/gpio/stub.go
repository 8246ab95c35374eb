//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/epaper-clock/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealButtons is not available on non-Linux platforms.
type RealButtons struct{}

// NewRealButtons returns an error on non-Linux platforms.
func NewRealButtons(chip string, pinUpdate, pinUser int) (*RealButtons, error) {
	return nil, errUnsupported
}

// Levels is not implemented on non-Linux platforms.
func (b *RealButtons) Levels() (logic.Buttons, error) {
	return logic.Buttons{}, errors.New("gpio: not supported")
}

// Watch is not implemented on non-Linux platforms.
func (b *RealButtons) Watch(pin logic.PinID, fn func()) (func(), error) {
	return nil, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealButtons) Close() error {
	return nil
}

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chip string, offset int, activeLow bool) (*RealOutput, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (o *RealOutput) Set(on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}
