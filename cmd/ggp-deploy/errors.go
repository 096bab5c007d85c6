package main

import (
	"errors"
	"fmt"
	"os"
)

// exitCodeError carries a non-zero ggp exit status up to main.
type exitCodeError struct {
	step string
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("%s: ggp exited with status %d", e.step, e.code)
}

// usageError marks bad flags, arguments or configuration.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitCode maps the error returned by the command tree to a process exit
// status: the ggp status when there is one, 2 for usage errors, 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	var ue *usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

func stepResult(step string, code int, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if code != 0 {
		return &exitCodeError{step: step, code: code}
	}
	return nil
}
