// Package errcode names the failure classes a boot can run into. They are
// logged and reported, never returned across mode boundaries.
package errcode

import "errors"

// Code is a stable error identifier. It is a string newtype, comparable and
// implements error.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OK Code = "ok"

	// ColdBootDataLoss: warm memory could not be trusted and was defaulted.
	ColdBootDataLoss Code = "cold_boot_data_loss"
	// SyncUnreachable: time sync did not complete within its budget.
	SyncUnreachable Code = "sync_unreachable"
	// CriticalBattery: the cell is at or below the shutdown threshold.
	CriticalBattery Code = "critical_battery"
	// InvalidRequestedMode: the request word held a value that is not a
	// requestable mode.
	InvalidRequestedMode Code = "invalid_requested_mode"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the operation that hit it and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}
