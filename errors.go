package rttiscanner

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrModuleNotFound is returned when the named module is not loaded in the target.
	ErrModuleNotFound = errors.New("module not found")

	// ErrInvalidPattern is returned for a pattern token that is not two characters long.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrInvalidHexString is returned for a two character token that is neither hex nor "??".
	ErrInvalidHexString = errors.New("invalid hex string")

	// ErrProcessNotFound is returned when no running process matches the requested name.
	ErrProcessNotFound = errors.New("process not found")

	// ErrUnsupportedPlatform is returned by live process access on platforms other than Windows.
	ErrUnsupportedPlatform = errors.New("live process access is only supported on windows")
)

// ReadMemoryError reports a failed read of target memory.
type ReadMemoryError struct {
	Address Address
	Err     error
}

func (e *ReadMemoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to read memory at %s: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("failed to read memory at %s", e.Address)
}

func (e *ReadMemoryError) Unwrap() error { return e.Err }

// IsReadMemoryError reports whether err is (or wraps) a *ReadMemoryError.
func IsReadMemoryError(err error) bool {
	var rerr *ReadMemoryError
	return errors.As(err, &rerr)
}
