//go:build !linux

package power

import "time"

// NewHost returns a platform that can wait but cannot re-execute, suspend or
// power off. Use it for development builds only.
func NewHost(cfg HostConfig) *Host {
	h := newHost(cfg)
	h.exec = func() error { return errUnsupported }
	h.suspend = func(time.Duration) error { return errUnsupported }
	h.powerOff = func() error { return errUnsupported }
	return h
}
