package hint

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrOverflow is reported when a contribution would push a payload
	// past MaxPayloadLength.
	ErrOverflow = errors.New("hint: payload size limit exceeded")
	// ErrElementFault is reported when an element returns an error or panics.
	ErrElementFault = errors.New("hint: element fault")
	// ErrUnknownPlayer is returned for operations on a player that is not
	// connected.
	ErrUnknownPlayer = errors.New("hint: unknown player")
	// ErrDuplicateID is returned when a custom id is already registered.
	ErrDuplicateID = errors.New("hint: duplicate custom id")
	// ErrNoOwner is returned when a personal element has no owner.
	ErrNoOwner = errors.New("hint: personal element without owner")
	// ErrRegistered is returned when an element is registered twice.
	ErrRegistered = errors.New("hint: element already registered")
)

// ElementError describes one failed element call.
type ElementError struct {
	Element  string
	PlayerID string
	Op       string
	Err      error
}

func (e *ElementError) Error() string {
	if e.PlayerID == "" {
		return fmt.Sprintf("%s %s: %v", e.Element, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s for %s: %v", e.Element, e.Op, e.PlayerID, e.Err)
}

func (e *ElementError) Unwrap() []error {
	return []error{ErrElementFault, e.Err}
}

func elementName(e Element) string {
	return fmt.Sprintf("%T", e)
}

// DiagnosticKind classifies a reported diagnostic.
type DiagnosticKind string

const (
	DiagOverflow DiagnosticKind = "OVERFLOW"
	DiagFault    DiagnosticKind = "ELEMENT_FAULT"
	DiagStale    DiagnosticKind = "STALE_ELEMENT"
	DiagDump     DiagnosticKind = "DEBUG_DUMP"
)

// Diagnostic is a non-fatal problem found during a pass.
type Diagnostic struct {
	Kind      DiagnosticKind
	Element   string
	ElementID string
	PlayerID  string
	Frame     uint64
	Detail    string
	// Size is the payload length in UTF-16 units the problem involved.
	Size int
}

// Reporter receives diagnostics from the scheduler.
type Reporter interface {
	Report(d Diagnostic)
}
