package common

import (
	"fmt"
)

// ErrUnknownZone is returned when a unit is scheduled to a zone that is not configured.
type ErrUnknownZone struct {
	Zone string
}

func (e ErrUnknownZone) Error() string {
	return fmt.Sprintf("unknown scheduler zone: %s", e.Zone)
}

// ErrStopped is returned to a context whose blocking wait was interrupted
// because the context itself is shutting down.
type ErrStopped struct {
	Context ContextID
	Cause   error
}

func (e ErrStopped) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("context stopped: %s", e.Context)
	}
	return fmt.Sprintf("context stopped: %s: %v", e.Context, e.Cause)
}

// Unwrap returns the stop condition of the context.
func (e ErrStopped) Unwrap() error {
	return e.Cause
}

// ErrUnitPanic is attached to the result of a unit that panicked.
type ErrUnitPanic struct {
	Value interface{}
	Stack string
}

func (e ErrUnitPanic) Error() string {
	return fmt.Sprintf("unit panicked: %v", e.Value)
}

// ErrSchedulerStopped is returned when work is submitted to a stopped scheduler.
type ErrSchedulerStopped struct{}

func (e ErrSchedulerStopped) Error() string {
	return "scheduler is stopped"
}

// ErrViewNotFound is returned when a view runtime with the specified ID is not registered.
type ErrViewNotFound struct {
	ID string
}

func (e ErrViewNotFound) Error() string {
	return fmt.Sprintf("view not found: %s", e.ID)
}

// ErrInvalidEncoding is returned when an invalid encoding format is encountered.
type ErrInvalidEncoding struct {
	Format string
}

func (e ErrInvalidEncoding) Error() string {
	return fmt.Sprintf("invalid encoding format: %s", e.Format)
}

// ErrUnknownView is returned when a view is started under a name nothing is registered for.
type ErrUnknownView struct {
	Name string
}

func (e ErrUnknownView) Error() string {
	return fmt.Sprintf("unknown view: %s", e.Name)
}

// ErrNodeNotFound is returned when an input event names a node the document does not hold.
type ErrNodeNotFound struct {
	ID NodeID
}

func (e ErrNodeNotFound) Error() string {
	return fmt.Sprintf("node not found: %s", e.ID)
}

// ErrInputQueueFull is returned when a view does not take its input events fast enough.
type ErrInputQueueFull struct {
	View string
}

func (e ErrInputQueueFull) Error() string {
	return fmt.Sprintf("input queue of view %s is full", e.View)
}
