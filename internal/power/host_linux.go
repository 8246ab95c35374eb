//go:build linux

package power

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

const (
	selfExe       = "/proc/self/exe"
	rtcWakeAlarm  = "/sys/class/rtc/rtc0/wakealarm"
	sysPowerState = "/sys/power/state"
)

// NewHost returns the Linux platform. Restart and wake re-execute the
// running binary with the same arguments.
func NewHost(cfg HostConfig) *Host {
	h := newHost(cfg)
	args := os.Args
	env := os.Environ()
	h.exec = func() error {
		return unix.Exec(selfExe, args, env)
	}
	h.suspend = suspendToRAM
	h.powerOff = func() error {
		unix.Sync()
		return unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
	}
	return h
}

// suspendToRAM arms the RTC alarm and suspends. It returns after resume.
func suspendToRAM(d time.Duration) error {
	secs := int64(d / time.Second)
	if secs < 1 {
		return nil
	}
	// The alarm must be cleared before it can be set again.
	if err := os.WriteFile(rtcWakeAlarm, []byte("0"), 0); err != nil {
		return fmt.Errorf("clear wake alarm: %w", err)
	}
	if err := os.WriteFile(rtcWakeAlarm, []byte("+"+strconv.FormatInt(secs, 10)), 0); err != nil {
		return fmt.Errorf("set wake alarm: %w", err)
	}
	if err := os.WriteFile(sysPowerState, []byte("mem"), 0); err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	return nil
}
