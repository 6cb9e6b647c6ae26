package cmdutils

import (
	"github.com/pkg/errors"
)

// SilentError indicates that the error message should not be printed
// when the error is handled, typically because it was already logged.
type SilentError struct {
	err error
}

func (e SilentError) Error() string {
	return e.err.Error()
}

func (e SilentError) Unwrap() error {
	return e.err
}

// WrapSilentError wraps an existing error into a SilentError to avoid
// having it printed to stderr when the command returns.
func WrapSilentError(err error) error {
	return &SilentError{err}
}

func IsSilentError(err error) bool {
	var silentErr *SilentError
	return errors.As(err, &silentErr)
}

// IncorrectUsageError indicates that the command was called with
// invalid arguments or flags and the usage message should be printed.
type IncorrectUsageError struct {
	err error
}

func (e IncorrectUsageError) Error() string {
	return e.err.Error()
}

func (e IncorrectUsageError) Unwrap() error {
	return e.err
}

func WrapIncorrectUsageError(err error) error {
	return &IncorrectUsageError{err}
}

func IsIncorrectUsageError(err error) bool {
	var usageErr *IncorrectUsageError
	return errors.As(err, &usageErr)
}
