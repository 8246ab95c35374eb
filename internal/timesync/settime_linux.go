//go:build linux

package timesync

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// SetSystemClock steps the system wall clock to t. It needs CAP_SYS_TIME.
func SetSystemClock(t time.Time) error {
	tv := unix.NsecToTimeval(t.UnixNano())
	if err := unix.Settimeofday(&tv); err != nil {
		return fmt.Errorf("settimeofday: %w", err)
	}
	return nil
}
