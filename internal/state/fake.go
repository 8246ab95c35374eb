package state

import (
	"fmt"
	"io/fs"
)

// FakeCold is an in-memory ColdStore for tests and simulation.
type FakeCold struct {
	// State is returned by ReadCold when Present is set.
	State   ColdState
	Present bool

	// ReadError and WriteError, if set, are returned by the matching call.
	ReadError  error
	WriteError error

	// Writes counts successful WriteCold calls.
	Writes int
}

// ReadCold implements ColdStore.
func (f *FakeCold) ReadCold() (ColdState, error) {
	if f.ReadError != nil {
		return ColdState{}, f.ReadError
	}
	if !f.Present {
		return ColdState{}, fmt.Errorf("read cold state: %w", fs.ErrNotExist)
	}
	return f.State, nil
}

// WriteCold implements ColdStore.
func (f *FakeCold) WriteCold(c ColdState) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.State = c
	f.Present = true
	f.Writes++
	return nil
}
