// Package state holds the data a boot carries over to the next one.
//
// Retention is part of the type: WarmState lives in the warm region and is
// lost on power-off, ColdState lives in a committed file and survives it.
// Store.Restore never reads the warm region on a cold boot.
package state

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/google/uuid"
	"github.com/sweeney/epaper-clock/internal/errcode"
	"github.com/sweeney/epaper-clock/internal/logic"
)

// MaxBatteryText is the number of bytes the warm region reserves for the
// battery indicator.
const MaxBatteryText = 7

// WarmState survives software resets and deep sleep, but not power loss.
type WarmState struct {
	// CurrentMode is the mode of the boot that wrote it; the next boot
	// reads it back as its last mode.
	CurrentMode logic.Mode
	BootCount   uint32
	BatteryText string
	Drift       logic.Drift
}

// ColdState survives power loss. It is only persisted by Store.Commit.
type ColdState struct {
	DeviceID string
	LastSync logic.SyncStamp
}

// PersistentState is the full retained state of one boot.
type PersistentState struct {
	Warm WarmState
	Cold ColdState
}

// DefaultWarm is the warm state after a cold power-on.
func DefaultWarm() WarmState {
	return WarmState{CurrentMode: logic.ModeReset, BatteryText: "--%"}
}

// DefaultCold is the cold state of a device that has never committed.
func DefaultCold() ColdState {
	return ColdState{}
}

// WarmRegion is the warm retention backend.
type WarmRegion interface {
	// ReadWarm returns the stored warm state, or false when the region does
	// not hold a valid one.
	ReadWarm() (WarmState, bool)
	WriteWarm(WarmState) error

	// SwapRequest atomically replaces the request word and returns the raw
	// previous value, which may be garbage.
	SwapRequest(logic.Mode) uint32
	// StoreRequest atomically writes the request word. It is the only warm
	// write allowed from an interrupt handler.
	StoreRequest(logic.Mode)
}

// ColdStore is the cold retention backend. ReadCold returns an error
// matching fs.ErrNotExist when nothing was ever committed.
type ColdStore interface {
	ReadCold() (ColdState, error)
	WriteCold(ColdState) error
}

// Store couples the two backends with the restore and commit rules.
type Store struct {
	Warm WarmRegion
	Cold ColdStore

	committed ColdState
	loaded    bool
}

// NewStore creates a Store over the given backends.
func NewStore(warm WarmRegion, cold ColdStore) *Store {
	return &Store{Warm: warm, Cold: cold}
}

// Restore loads the retained state for a boot with the given reset cause.
// The returned state is always usable. A non-nil error reports what had to
// be defaulted; it is meant for logging, not for aborting the boot.
func (s *Store) Restore(cause logic.ResetCause) (PersistentState, error) {
	st := PersistentState{Warm: DefaultWarm(), Cold: DefaultCold()}
	var errs []error

	cold, err := s.Cold.ReadCold()
	switch {
	case err == nil:
		st.Cold = cold
		s.committed = cold
		s.loaded = true
	case errors.Is(err, fs.ErrNotExist):
	default:
		errs = append(errs, fmt.Errorf("read cold state: %w", err))
	}

	if st.Cold.DeviceID == "" {
		st.Cold.DeviceID = NewDeviceID()
	}

	if cause != logic.CauseCold {
		warm, ok := s.Warm.ReadWarm()
		if ok {
			st.Warm = warm
		} else {
			errs = append(errs, &errcode.E{C: errcode.ColdBootDataLoss, Op: "restore", Msg: "warm region invalid after " + cause.String()})
		}
	}

	return st, errors.Join(errs...)
}

// Commit writes the warm state and, when it changed since Restore or the
// previous Commit, the cold state. It must complete before sleep entry.
func (s *Store) Commit(st PersistentState) error {
	if err := s.Warm.WriteWarm(st.Warm); err != nil {
		return fmt.Errorf("write warm state: %w", err)
	}
	if s.loaded && st.Cold == s.committed {
		return nil
	}
	if err := s.Cold.WriteCold(st.Cold); err != nil {
		return fmt.Errorf("write cold state: %w", err)
	}
	s.committed = st.Cold
	s.loaded = true
	return nil
}

// NewDeviceID returns a random identifier for telemetry reports.
func NewDeviceID() string {
	return uuid.NewString()
}
