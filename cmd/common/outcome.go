// Package common contains shared functionality for command handlers
package common

import (
	"errors"
	"fmt"
	"time"

	"fjacquet/aqi-bulletin/internal/bulletinerror"
	"fjacquet/aqi-bulletin/internal/dateutils"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/pipeline"
)

// Exit codes returned by the CLI.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ResolveDate parses value as the target date, or returns today when it is
// empty.
func ResolveDate(value string, today time.Time) (time.Time, error) {
	if value == "" {
		return today, nil
	}
	date, err := dateutils.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date: %w", err)
	}
	return date, nil
}

// OutcomeError maps a pipeline result to the command's error. Publishing
// returns nil. NotYetPublished returns nil when notPublishedCode is zero,
// otherwise an *ExitError with that code. Every other failure exits with
// ExitFailure.
func OutcomeError(res pipeline.Result, err error, notPublishedCode int, log logging.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bulletinerror.ErrNotYetPublished) {
		log.Info("Nothing to do until the bulletin is published",
			logging.F(logging.FieldDate, dateutils.ToISODate(res.Date)))
		if notPublishedCode == ExitOK {
			return nil
		}
		return &ExitError{Code: notPublishedCode, Err: err}
	}
	return &ExitError{Code: ExitFailure, Err: err}
}
