//go:build !linux

package state

import "errors"

// OpenRegion is only available on Linux. Use NewMemoryRegion elsewhere.
func OpenRegion(path string) (*Region, error) {
	return nil, errors.New("warm region requires linux")
}
