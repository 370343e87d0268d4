package cli

import (
	"errors"
	"fmt"
)

// ErrNoSources is returned when the configuration names no calendar source.
var ErrNoSources = errors.New("no calendar sources configured")

// MissingArgumentError reports a required flag or positional argument that
// was not supplied.
type MissingArgumentError struct {
	// Name is the argument as shown to the user, e.g. "--start <date>".
	Name string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("missing expected argument '%s'", e.Name)
}

// UsageError wraps errors caused by invalid command-line input.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// isUsage reports whether err should exit with the usage status.
func isUsage(err error) bool {
	var missing *MissingArgumentError
	var usage *UsageError
	return errors.As(err, &missing) || errors.As(err, &usage)
}
