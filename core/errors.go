package core

import "github.com/pkg/errors"

// FieldError ties an error message to one request field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries per-field messages for the API error envelope.
// Fields may be empty, in which case Err alone describes the problem.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// shutdown marks an error as unrecoverable. The API error handler triggers a
// graceful server stop when it sees one.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
