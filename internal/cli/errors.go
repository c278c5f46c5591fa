package cli

import "fmt"

// usageError carries exit code 2 for misuse, distinct from operational
// failures.
type usageError struct {
	message string
}

func (e *usageError) Error() string {
	return e.message
}

func (e *usageError) ExitCode() int {
	return 2
}

func usageErrorf(format string, args ...any) error {
	return &usageError{message: fmt.Sprintf(format, args...)}
}
