package services

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidScheduleTime = errors.New("invalid schedule time")
	ErrInvalidReminder     = errors.New("invalid reminder")
	ErrReminderNotFound    = errors.New("reminder not found")
	ErrReminderExists      = errors.New("reminder already exists")
	ErrStaleUpdate         = errors.New("reminder changed since the job was scheduled")
)

// PersistenceError reports a failed read or write against the reminder store
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("reminder store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Cause() error  { return e.Err }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// PlacementError describes a failed call placement. Its message is stored as the reminder result.
type PlacementError struct {
	Kind string // connection, provider, timeout, rejected
	Err  error
}

func (e *PlacementError) Error() string {
	if e.Err == nil {
		return "placement " + e.Kind
	}
	return fmt.Sprintf("placement %s: %v", e.Kind, e.Err)
}

func (e *PlacementError) Cause() error  { return e.Err }
func (e *PlacementError) Unwrap() error { return e.Err }

const (
	PlacementConnection = "connection"
	PlacementProvider   = "provider"
	PlacementTimeout    = "timeout"
	PlacementRejected   = "rejected"
)
