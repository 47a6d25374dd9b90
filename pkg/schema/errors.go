package schema

import "errors"

// ValidationError wraps a JSON Schema validation failure.
// Detail returns the text handed back to producers as corrective feedback.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "event validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Detail returns the human-readable failure description.
func (e *ValidationError) Detail() string {
	return e.Err.Error()
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
