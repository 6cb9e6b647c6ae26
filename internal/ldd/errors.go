package ldd

import (
	"fmt"

	"github.com/pkg/errors"
)

// IOError is returned when a binary, either the analyzed file itself or
// one of its resolved dependencies, can't be read.
type IOError struct {
	Path string
	err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.err)
}

func (e *IOError) Unwrap() error {
	return e.err
}

func WrapIOError(path string, err error) error {
	return &IOError{Path: path, err: err}
}

func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
