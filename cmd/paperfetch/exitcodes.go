// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import "errors"

// Exit codes.
const (
	ExitSuccess     = 0   // Every record done or skipped
	ExitError       = 1   // Invalid arguments, configuration or runtime failure
	ExitFailures    = 2   // Batch completed but some records failed
	ExitInterrupted = 130 // Stopped by SIGINT or SIGTERM
)

// exitError carries a specific exit status out of a command's RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}
