package main

import "errors"

const (
	exitOK         = 0
	exitUsage      = 1
	exitInvalid    = 2
	exitUnreadable = 3
	exitBadJSON    = 4
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string { return e.msg }

func (e *exitError) Unwrap() error { return e.err }

func fail(code int, msg string, err error) error {
	return &exitError{code: code, msg: msg, err: err}
}

// exitCode maps err to an exit code. Errors without one, including cobra's
// argument and flag errors, are usage errors.
func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitUsage
}
