package logic

import "time"

// Drift accumulates the clock corrections applied by past time syncs as an
// online running average.
type Drift struct {
	// Average is the mean correction in seconds. Positive means the local
	// clock was behind.
	Average float64
	Count   uint32
}

// Add folds one correction into the average.
func (d Drift) Add(sample time.Duration) Drift {
	s := sample.Seconds()
	n := float64(d.Count)
	return Drift{
		Average: (s + d.Average*n) / (n + 1),
		Count:   d.Count + 1,
	}
}

// SyncStamp is the wall-clock time of the last successful sync.
type SyncStamp struct {
	Hour   uint8
	Minute uint8
	Valid  bool
}

// StampOf records the hour and minute of t.
func StampOf(t time.Time) SyncStamp {
	return SyncStamp{Hour: uint8(t.Hour()), Minute: uint8(t.Minute()), Valid: true}
}

// String renders the stamp as "HH:MM", or "--:--" before the first sync.
func (s SyncStamp) String() string {
	if !s.Valid {
		return "--:--"
	}
	return twoDigits(int(s.Hour)) + ":" + twoDigits(int(s.Minute))
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10%10), byte('0' + n%10)})
}
