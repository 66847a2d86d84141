package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// ErrInvalidDocument indicates a stored document failed schema checks and could not be repaired.
var ErrInvalidDocument = errors.New("invalid document")

// ErrDocumentTooLarge indicates a document exceeds what the store can hold.
var ErrDocumentTooLarge = errors.New("document too large")

// ErrWriteRejected indicates the store refused a write for a reason retrying cannot fix.
var ErrWriteRejected = errors.New("write rejected by store")

// ValidationError reports user input that fails form-level constraints.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced entity that does not resolve.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// PermissionError reports an actor lacking the role required for an action.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return "not allowed to " + e.Action
}

// Forbidden builds a PermissionError for action.
func Forbidden(action string) error {
	return &PermissionError{Action: action}
}

// TransportError wraps a failed call to the data store or another remote dependency.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport wraps err as a TransportError unless it already belongs to the taxonomy.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		ne *NotFoundError
		pe *PermissionError
		te *TransportError
	)
	if errors.As(err, &ve) || errors.As(err, &ne) || errors.As(err, &pe) || errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}
