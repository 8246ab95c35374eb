//go:build !linux

package timesync

import (
	"errors"
	"time"
)

// SetSystemClock is only supported on Linux.
func SetSystemClock(t time.Time) error {
	return errors.New("set system clock: not supported on this platform")
}
