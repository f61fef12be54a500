// Package batch runs the bulletin pipeline over a range of dates.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/aqi-bulletin/internal/bulletinerror"
	"fjacquet/aqi-bulletin/internal/dateutils"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/pipeline"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DateRange represents an inclusive range of civil dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds an inclusive range, rejecting an end before start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start, end = dateutils.Civil(start), dateutils.Civil(end)
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("range end %s is before start %s",
			dateutils.ToISODate(end), dateutils.ToISODate(start))
	}
	return DateRange{Start: start, End: end}, nil
}

// String returns the date range in the format "YYYY-MM-DD_YYYY-MM-DD"
func (dr DateRange) String() string {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s_%s", dateutils.ToISODate(dr.Start), dateutils.ToISODate(dr.End))
}

// Days returns the number of dates in the range.
func (dr DateRange) Days() int {
	if dr.Start.IsZero() || dr.End.IsZero() || dr.End.Before(dr.Start) {
		return 0
	}
	return int(dr.End.Sub(dr.Start).Hours()/24) + 1
}

// Dates lists every date of the range in ascending order.
func (dr DateRange) Dates() []time.Time {
	dates := make([]time.Time, 0, dr.Days())
	for d := dr.Start; !d.After(dr.End) && dr.Days() > 0; d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Runner ingests the bulletin of one date.
type Runner interface {
	Run(ctx context.Context, date time.Time) (pipeline.Result, error)
}

// ExistsFunc reports whether a record for date is already on disk.
type ExistsFunc func(date time.Time) bool

// Summary collects the outcome of every date of a backfill.
type Summary struct {
	ID              string
	Range           DateRange
	Published       int
	NotYetPublished int
	Failed          int
	Skipped         int
	Results         []pipeline.Result
}

// Err returns an error naming the failed dates, or nil.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	var errs []error
	for _, res := range s.Results {
		if res.Outcome == pipeline.OutcomeFailed {
			errs = append(errs, fmt.Errorf("%s: %w", dateutils.ToISODate(res.Date), res.Err))
		}
	}
	return fmt.Errorf("%d of %d bulletins failed: %w", s.Failed, len(s.Results), errors.Join(errs...))
}

// Option configures a Backfill.
type Option func(*Backfill)

// WithRateLimit spaces consecutive runs at least interval apart.
func WithRateLimit(interval time.Duration) Option {
	return func(b *Backfill) {
		if interval > 0 {
			b.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithSkipExisting skips dates for which exists reports a record.
func WithSkipExisting(exists ExistsFunc) Option {
	return func(b *Backfill) {
		b.exists = exists
	}
}

// Backfill ingests a range of bulletins sequentially, one date at a time.
type Backfill struct {
	runner  Runner
	logger  logging.Logger
	limiter *rate.Limiter
	exists  ExistsFunc
}

// NewBackfill creates a Backfill driving runner.
func NewBackfill(runner Runner, logger logging.Logger, opts ...Option) *Backfill {
	b := &Backfill{
		runner:  runner,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run ingests every date of dr in ascending order. A failed date does not
// stop the backfill; a cancelled context does. Not-yet-published dates are
// counted but are not failures.
func (b *Backfill) Run(ctx context.Context, dr DateRange) (Summary, error) {
	summary := Summary{ID: uuid.NewString(), Range: dr}
	log := b.logger.WithFields(
		logging.F(logging.FieldBatchID, summary.ID),
		logging.F(logging.FieldRange, dr.String()))

	log.Info("Starting backfill", logging.F(logging.FieldCount, dr.Days()))

	for _, date := range dr.Dates() {
		if b.exists != nil && b.exists(date) {
			summary.Skipped++
			log.Debug("Record already present, skipping",
				logging.F(logging.FieldDate, dateutils.ToISODate(date)))
			continue
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return summary, fmt.Errorf("backfill aborted: %w", err)
		}

		res, err := b.runner.Run(ctx, date)
		summary.Results = append(summary.Results, res)
		switch {
		case err == nil:
			summary.Published++
		case errors.Is(err, bulletinerror.ErrNotYetPublished):
			summary.NotYetPublished++
		default:
			summary.Failed++
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, fmt.Errorf("backfill aborted: %w", ctxErr)
		}
	}

	log.Info("Backfill completed",
		logging.F("published", summary.Published),
		logging.F("not_yet_published", summary.NotYetPublished),
		logging.F("failed", summary.Failed),
		logging.F("skipped", summary.Skipped))

	return summary, summary.Err()
}
