// Package bulletinerror defines the typed errors produced while ingesting a
// daily bulletin. The three outcomes a caller has to tell apart (extraction
// failure, not yet published, genuine failure) each have a sentinel that
// matches through errors.Is.
package bulletinerror

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrExtraction matches any ExtractionError.
	ErrExtraction = errors.New("extraction failure")
	// ErrNotYetPublished matches any NotYetPublishedError.
	ErrNotYetPublished = errors.New("bulletin not yet published")
	// ErrGenuineFailure matches any GenuineFailureError.
	ErrGenuineFailure = errors.New("genuine extraction failure")
)

// Reason explains why a run was classified as a genuine failure.
type Reason string

const (
	ReasonWindowPassed Reason = "publication-window-passed"
	ReasonTimeout      Reason = "timeout"
	ReasonSchemaDrift  Reason = "schema-drift"
	ReasonUnreadable   Reason = "unreadable-document"
)

// ExtractionError is returned by the extractor whenever the document could
// not be turned into a raw matrix. The cause is opaque to callers.
type ExtractionError struct {
	Location string
	Stage    string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for '%s' during %s: %v", e.Location, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// NotYetPublishedError is the benign outcome: the bulletin for Date is
// expected later. Cause holds the extraction error that triggered the check.
type NotYetPublishedError struct {
	Date   time.Time
	Now    time.Time
	Cutoff time.Duration
	Cause  error
}

func (e *NotYetPublishedError) Error() string {
	return fmt.Sprintf("bulletin for %s not yet published (local time %s, cutoff %s)",
		e.Date.Format("2006-01-02"), e.Now.Format("2006-01-02 15:04 -07:00"), formatCutoff(e.Cutoff))
}

func (e *NotYetPublishedError) Unwrap() error {
	return e.Cause
}

func (e *NotYetPublishedError) Is(target error) bool {
	return target == ErrNotYetPublished
}

// GenuineFailureError marks a run that failed for a reason other than the
// bulletin not being out yet.
type GenuineFailureError struct {
	Date   time.Time
	Reason Reason
	Cause  error
}

func (e *GenuineFailureError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("bulletin for %s failed (%s)", e.Date.Format("2006-01-02"), e.Reason)
	}
	return fmt.Sprintf("bulletin for %s failed (%s): %v", e.Date.Format("2006-01-02"), e.Reason, e.Cause)
}

func (e *GenuineFailureError) Unwrap() error {
	return e.Cause
}

func (e *GenuineFailureError) Is(target error) bool {
	return target == ErrGenuineFailure
}

// SchemaDriftError reports a table whose column count no longer matches the
// canonical schema once the serial-number column is removed.
type SchemaDriftError struct {
	Columns  int
	Expected int
	Header   []string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift: expected %d columns, got %d [%s]",
		e.Expected, e.Columns, strings.Join(e.Header, " | "))
}

func formatCutoff(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}
