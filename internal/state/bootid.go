package state

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// KernelBootIDPath is where Linux exposes the id of the running boot.
const KernelBootIDPath = "/proc/sys/kernel/random/boot_id"

// ReadBootID parses a kernel boot id file.
func ReadBootID(path string) (BootID, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BootID{}, fmt.Errorf("read boot id: %w", err)
	}
	id, err := uuid.Parse(strings.TrimSpace(string(raw)))
	if err != nil {
		return BootID{}, fmt.Errorf("parse boot id: %w", err)
	}
	return BootID(id), nil
}
