// Package availability decides whether a failed extraction means the
// bulletin simply has not been published yet.
package availability

import (
	"time"

	"fjacquet/aqi-bulletin/internal/bulletinerror"
	"fjacquet/aqi-bulletin/internal/dateutils"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultUTCOffset is the civil offset the publisher works in.
	DefaultUTCOffset = "+05:30"
	// DefaultPublishCutoff is the local time of day after which a missing
	// bulletin for today is a genuine failure.
	DefaultPublishCutoff = 17 * time.Hour
)

// Classifier maps extraction failures to NotYetPublished or a genuine failure.
type Classifier struct {
	clock    clockwork.Clock
	location *time.Location
	cutoff   time.Duration
}

// NewClassifier creates a Classifier. A nil clock uses the real clock and a
// nil location defaults to UTC.
func NewClassifier(clock clockwork.Clock, location *time.Location, cutoff time.Duration) *Classifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if location == nil {
		location = time.UTC
	}
	return &Classifier{clock: clock, location: location, cutoff: cutoff}
}

// Today returns the current civil date in the configured offset.
func (c *Classifier) Today() time.Time {
	return dateutils.Today(c.clock, c.location)
}

// Now returns the current instant in the configured offset.
func (c *Classifier) Now() time.Time {
	return c.clock.Now().In(c.location)
}

// Classify wraps cause according to how target relates to today.
// A target in the future, or today before the cutoff, yields a
// *bulletinerror.NotYetPublishedError; anything else yields a
// *bulletinerror.GenuineFailureError.
func (c *Classifier) Classify(cause error, target time.Time) error {
	now := c.Now()
	target = dateutils.Civil(target)

	switch cmp := dateutils.CompareDates(target, now); {
	case cmp > 0,
		cmp == 0 && dateutils.TimeOfDay(now) < c.cutoff:
		return &bulletinerror.NotYetPublishedError{Date: target, Now: now, Cutoff: c.cutoff, Cause: cause}
	default:
		return &bulletinerror.GenuineFailureError{Date: target, Reason: bulletinerror.ReasonWindowPassed, Cause: cause}
	}
}
