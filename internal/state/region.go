package state

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/sweeney/epaper-clock/internal/logic"
)

// Warm region layout. Multi-byte fields are little endian except the request
// word, which is accessed with native atomics.
const (
	offMagic      = 0
	offVersion    = 4
	offBootID     = 8
	offRequest    = 24
	offExitReason = 28
	offExitSource = 32
	offExitPin    = 36
	offMode       = 40
	offBootCount  = 44
	offDriftAvg   = 48
	offDriftCount = 56
	offBattery    = 60 // length byte followed by MaxBatteryText bytes
	offChecksum   = 68

	// RegionSize is the size of the backing file.
	RegionSize = 128

	regionMagic   = 0x4b435045 // "EPCK"
	regionVersion = 1
)

// BootID identifies one kernel boot. A region stamped with a different boot
// id was written before the last power cycle.
type BootID [16]byte

// ExitReason records how the previous process left.
type ExitReason uint32

const (
	// ExitNone means the previous process did not record an exit: it
	// crashed, was killed, or is still running.
	ExitNone ExitReason = iota
	ExitRestart
	ExitSleep
)

func (r ExitReason) String() string {
	switch r {
	case ExitRestart:
		return "restart"
	case ExitSleep:
		return "sleep"
	default:
		return "none"
	}
}

// ExitRecord is written by the platform immediately before the process is
// replaced, and read back by the next boot's wake diagnostics.
type ExitRecord struct {
	Reason ExitReason
	Source logic.WakeSource
	Pin    logic.PinID
}

// ExitLog reads and writes the exit record. LoadExit returns false when the
// region header is missing or belongs to an earlier kernel boot.
type ExitLog interface {
	LoadExit() (ExitRecord, bool)
	StoreExit(ExitRecord)
}

// Region is a warm region over a fixed-size byte buffer. The buffer is
// either a shared file mapping or plain memory.
type Region struct {
	buf    []byte
	bootID BootID
	unmap  func() error
}

// NewMemoryRegion returns a Region over process memory, as used on hosts
// without a warm backing file and in tests. bootID stands in for the kernel
// boot id.
func NewMemoryRegion(bootID BootID) *Region {
	// Backed by uint64s so the request word is aligned for atomics.
	words := make([]uint64, RegionSize/8)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), RegionSize)
	return &Region{buf: buf, bootID: bootID}
}

// Close releases the mapping, if any.
func (r *Region) Close() error {
	if r.unmap == nil {
		return nil
	}
	return r.unmap()
}

// PowerCycle simulates a power loss on a memory region: contents are
// scrambled and the kernel boot id changes.
func (r *Region) PowerCycle(bootID BootID) {
	for i := range r.buf {
		r.buf[i] = byte(i*31 + 7)
	}
	r.bootID = bootID
}

func (r *Region) headerValid() bool {
	le := binary.LittleEndian
	return le.Uint32(r.buf[offMagic:]) == regionMagic &&
		le.Uint32(r.buf[offVersion:]) == regionVersion &&
		bytes.Equal(r.buf[offBootID:offBootID+16], r.bootID[:])
}

func (r *Region) stampHeader() {
	if r.headerValid() {
		return
	}
	le := binary.LittleEndian
	le.PutUint32(r.buf[offMagic:], regionMagic)
	le.PutUint32(r.buf[offVersion:], regionVersion)
	copy(r.buf[offBootID:offBootID+16], r.bootID[:])
	// Everything after the request word is stale; the request itself may
	// already hold a value stored by an interrupt during this kernel boot.
	clear(r.buf[offExitReason:])
}

func (r *Region) checksum() uint32 {
	return crc32.ChecksumIEEE(r.buf[offMode:offChecksum])
}

// ReadWarm implements WarmRegion.
func (r *Region) ReadWarm() (WarmState, bool) {
	if !r.headerValid() {
		return WarmState{}, false
	}
	le := binary.LittleEndian
	if le.Uint32(r.buf[offChecksum:]) != r.checksum() {
		return WarmState{}, false
	}
	mode := logic.Mode(le.Uint32(r.buf[offMode:]))
	if !mode.Valid() {
		return WarmState{}, false
	}
	n := int(r.buf[offBattery])
	if n > MaxBatteryText {
		return WarmState{}, false
	}
	return WarmState{
		CurrentMode: mode,
		BootCount:   le.Uint32(r.buf[offBootCount:]),
		BatteryText: string(r.buf[offBattery+1 : offBattery+1+n]),
		Drift: logic.Drift{
			Average: math.Float64frombits(le.Uint64(r.buf[offDriftAvg:])),
			Count:   le.Uint32(r.buf[offDriftCount:]),
		},
	}, true
}

// WriteWarm implements WarmRegion. It leaves the request word untouched.
func (r *Region) WriteWarm(w WarmState) error {
	r.stampHeader()
	le := binary.LittleEndian
	le.PutUint32(r.buf[offMode:], uint32(w.CurrentMode))
	le.PutUint32(r.buf[offBootCount:], w.BootCount)
	le.PutUint64(r.buf[offDriftAvg:], math.Float64bits(w.Drift.Average))
	le.PutUint32(r.buf[offDriftCount:], w.Drift.Count)

	text := w.BatteryText
	if len(text) > MaxBatteryText {
		text = text[:MaxBatteryText]
	}
	field := r.buf[offBattery : offBattery+1+MaxBatteryText]
	clear(field)
	field[0] = byte(len(text))
	copy(field[1:], text)

	le.PutUint32(r.buf[offChecksum:], r.checksum())
	return nil
}

func (r *Region) requestWord() *uint32 {
	return (*uint32)(unsafe.Pointer(&r.buf[offRequest]))
}

// SwapRequest implements WarmRegion.
func (r *Region) SwapRequest(m logic.Mode) uint32 {
	return atomic.SwapUint32(r.requestWord(), uint32(m))
}

// StoreRequest implements WarmRegion.
func (r *Region) StoreRequest(m logic.Mode) {
	atomic.StoreUint32(r.requestWord(), uint32(m))
}

// LoadExit implements ExitLog.
func (r *Region) LoadExit() (ExitRecord, bool) {
	if !r.headerValid() {
		return ExitRecord{}, false
	}
	le := binary.LittleEndian
	return ExitRecord{
		Reason: ExitReason(le.Uint32(r.buf[offExitReason:])),
		Source: logic.WakeSource(le.Uint32(r.buf[offExitSource:])),
		Pin:    logic.PinID(le.Uint32(r.buf[offExitPin:])),
	}, true
}

// StoreExit implements ExitLog.
func (r *Region) StoreExit(rec ExitRecord) {
	r.stampHeader()
	le := binary.LittleEndian
	le.PutUint32(r.buf[offExitReason:], uint32(rec.Reason))
	le.PutUint32(r.buf[offExitSource:], uint32(rec.Source))
	le.PutUint32(r.buf[offExitPin:], uint32(rec.Pin))
}
