//go:build linux

package state

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// OpenRegion maps the warm region file at path, creating it if needed. The
// file should live on tmpfs so a power cycle wipes it.
func OpenRegion(path string) (*Region, error) {
	bootID, err := ReadBootID(KernelBootIDPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create warm region dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open warm region: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(RegionSize); err != nil {
		return nil, fmt.Errorf("size warm region: %w", err)
	}
	buf, err := unix.Mmap(int(f.Fd()), 0, RegionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map warm region: %w", err)
	}

	return &Region{
		buf:    buf,
		bootID: bootID,
		unmap:  func() error { return unix.Munmap(buf) },
	}, nil
}
