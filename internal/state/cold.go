package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// coldRecord is the on-disk form of ColdState. Integer keys keep the file
// small and let fields be renamed freely.
type coldRecord struct {
	Version    uint8  `cbor:"1,keyasint"`
	DeviceID   string `cbor:"2,keyasint"`
	SyncValid  bool   `cbor:"3,keyasint"`
	SyncHour   uint8  `cbor:"4,keyasint"`
	SyncMinute uint8  `cbor:"5,keyasint"`
}

const coldVersion = 1

// FileStore keeps cold state in a CBOR file. Writes go to a temporary file
// that is synced and renamed over the previous one.
type FileStore struct {
	Path string
}

// NewFileStore creates a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// ReadCold implements ColdStore.
func (s *FileStore) ReadCold() (ColdState, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return ColdState{}, fmt.Errorf("read cold file: %w", err)
	}
	var rec coldRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return ColdState{}, fmt.Errorf("decode cold file: %w", err)
	}
	if rec.Version != coldVersion {
		return ColdState{}, fmt.Errorf("decode cold file: unsupported version %d", rec.Version)
	}
	if rec.SyncValid && (rec.SyncHour > 23 || rec.SyncMinute > 59) {
		return ColdState{}, fmt.Errorf("decode cold file: sync stamp %02d:%02d out of range", rec.SyncHour, rec.SyncMinute)
	}
	return ColdState{
		DeviceID: rec.DeviceID,
		LastSync: logic.SyncStamp{Hour: rec.SyncHour, Minute: rec.SyncMinute, Valid: rec.SyncValid},
	}, nil
}

// WriteCold implements ColdStore.
func (s *FileStore) WriteCold(c ColdState) error {
	data, err := cbor.Marshal(coldRecord{
		Version:    coldVersion,
		DeviceID:   c.DeviceID,
		SyncValid:  c.LastSync.Valid,
		SyncHour:   c.LastSync.Hour,
		SyncMinute: c.LastSync.Minute,
	})
	if err != nil {
		return fmt.Errorf("encode cold state: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cold dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cold-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("rename cold file: %w", err)
	}

	// Persist the rename itself.
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open cold dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync cold dir: %w", err)
	}
	return nil
}
