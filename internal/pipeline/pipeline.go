// Package pipeline runs the daily bulletin ingestion for one date:
// locate, extract, classify failures, normalize, and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/aqi-bulletin/internal/availability"
	"fjacquet/aqi-bulletin/internal/bulletinerror"
	"fjacquet/aqi-bulletin/internal/dateutils"
	"fjacquet/aqi-bulletin/internal/extractor"
	"fjacquet/aqi-bulletin/internal/fetcher"
	"fjacquet/aqi-bulletin/internal/locator"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/models"
	"fjacquet/aqi-bulletin/internal/normalizer"
	"fjacquet/aqi-bulletin/internal/observability"
	"fjacquet/aqi-bulletin/internal/publisher"
)

// Outcome is the externally visible result of a run.
type Outcome string

const (
	OutcomePublished       Outcome = "published"
	OutcomeNotYetPublished Outcome = "not_yet_published"
	OutcomeFailed          Outcome = "failed"
)

// Result describes a finished run.
type Result struct {
	Date        time.Time
	Source      string
	Outcome     Outcome
	OutputPath  string
	Rows        int
	DroppedRows int
	Err         error
}

// RecordWriter persists a normalized table and returns where it went.
type RecordWriter interface {
	Write(table models.BulletinTable) (string, error)
}

// RawDumper stores the raw extraction for a date.
type RawDumper interface {
	Dump(date time.Time, raw models.RawExtraction) (string, error)
}

// Pipeline wires the ingestion components together.
type Pipeline struct {
	locator    *locator.Locator
	extractor  extractor.Extractor
	classifier *availability.Classifier
	normalizer *normalizer.Normalizer
	writer     RecordWriter
	dumper     RawDumper
	publisher  publisher.Publisher
	metrics    *observability.Metrics
	logger     logging.Logger
}

// Option configures optional pipeline stages.
type Option func(*Pipeline)

// WithRawDumper writes every raw extraction before normalization.
func WithRawDumper(d RawDumper) Option {
	return func(p *Pipeline) { p.dumper = d }
}

// WithPublisher publishes rows after the record is committed.
func WithPublisher(pub publisher.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithMetrics records run metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a Pipeline.
func New(
	loc *locator.Locator,
	ext extractor.Extractor,
	classifier *availability.Classifier,
	norm *normalizer.Normalizer,
	w RecordWriter,
	logger logging.Logger,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		locator:    loc,
		extractor:  ext,
		classifier: classifier,
		normalizer: norm,
		writer:     w,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Today returns the default target date: today in the configured offset.
func (p *Pipeline) Today() time.Time {
	return p.classifier.Today()
}

// Run ingests the published bulletin for date. The returned error is nil
// only for OutcomePublished; a *bulletinerror.NotYetPublishedError marks the
// benign outcome and must be told apart with errors.Is.
func (p *Pipeline) Run(ctx context.Context, date time.Time) (Result, error) {
	date = dateutils.Civil(date)
	location := p.locator.URL(date)
	log := p.logger.WithFields(
		logging.F(logging.FieldDate, dateutils.ToISODate(date)),
		logging.F(logging.FieldURL, location))

	log.Info("Starting bulletin run")
	res := Result{Date: date, Source: location}

	raw, err := p.extractor.Extract(ctx, location)
	if err != nil {
		return p.finish(log, res, p.classifyFailure(ctx, date, err))
	}
	return p.process(ctx, log, res, raw)
}

// Convert ingests a local bulletin file for date. A local file is never
// "not yet published": any extraction failure is genuine.
func (p *Pipeline) Convert(ctx context.Context, date time.Time, path string) (Result, error) {
	date = dateutils.Civil(date)
	log := p.logger.WithFields(
		logging.F(logging.FieldDate, dateutils.ToISODate(date)),
		logging.F(logging.FieldFile, path))

	log.Info("Converting local bulletin")
	res := Result{Date: date, Source: path}

	raw, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return p.finish(log, res, &bulletinerror.GenuineFailureError{
			Date: date, Reason: bulletinerror.ReasonUnreadable, Cause: err,
		})
	}
	return p.process(ctx, log, res, raw)
}

// classifyFailure maps an extraction error to an outcome error. Timeouts
// skip the classifier; cancellation of ctx is returned as is.
func (p *Pipeline) classifyFailure(ctx context.Context, date time.Time, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	if errors.Is(err, fetcher.ErrTimeout) {
		return &bulletinerror.GenuineFailureError{Date: date, Reason: bulletinerror.ReasonTimeout, Cause: err}
	}
	return p.classifier.Classify(err, date)
}

func (p *Pipeline) process(ctx context.Context, log logging.Logger, res Result, raw models.RawExtraction) (Result, error) {
	if p.dumper != nil {
		if path, err := p.dumper.Dump(res.Date, raw); err != nil {
			log.WithError(err).Warn("Failed to write raw extraction dump")
		} else {
			log.Debug("Raw extraction dumped", logging.F(logging.FieldOutputFile, path))
		}
	}

	table, stats, err := p.normalizer.Normalize(res.Date, raw)
	if err != nil {
		return p.finish(log, res, err)
	}
	res.Rows = stats.Rows
	res.DroppedRows = stats.Dropped

	path, err := p.writer.Write(table)
	if err != nil {
		return p.finish(log, res, fmt.Errorf("persist bulletin: %w", err))
	}
	res.OutputPath = path

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, table); err != nil {
			return p.finish(log, res, err)
		}
		if p.metrics != nil {
			p.metrics.Published.Add(float64(table.Len()))
		}
	}

	return p.finish(log, res, nil)
}

func (p *Pipeline) finish(log logging.Logger, res Result, err error) (Result, error) {
	res.Err = err
	switch {
	case err == nil:
		res.Outcome = OutcomePublished
		log.Info("Bulletin run completed",
			logging.F(logging.FieldOutcome, res.Outcome),
			logging.F(logging.FieldOutputFile, res.OutputPath),
			logging.F(logging.FieldCount, res.Rows),
			logging.F(logging.FieldDropped, res.DroppedRows))
	case errors.Is(err, bulletinerror.ErrNotYetPublished):
		res.Outcome = OutcomeNotYetPublished
		log.Info("Bulletin not yet published",
			logging.F(logging.FieldOutcome, res.Outcome),
			logging.F(logging.FieldReason, err.Error()))
	default:
		res.Outcome = OutcomeFailed
		fields := []logging.Field{logging.F(logging.FieldOutcome, res.Outcome)}
		var genuine *bulletinerror.GenuineFailureError
		if errors.As(err, &genuine) {
			fields = append(fields, logging.F(logging.FieldReason, string(genuine.Reason)))
		}
		log.WithError(err).Error("Bulletin run failed", fields...)
	}

	if p.metrics != nil {
		p.metrics.RecordRun(string(res.Outcome), writtenRows(res), res.DroppedRows, p.classifier.Now())
	}
	return res, err
}

func writtenRows(res Result) int {
	if res.OutputPath == "" {
		return 0
	}
	return res.Rows
}
