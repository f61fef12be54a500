// Package container provides dependency injection for the aqi-bulletin application.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"fmt"

	"fjacquet/aqi-bulletin/internal/availability"
	"fjacquet/aqi-bulletin/internal/batch"
	"fjacquet/aqi-bulletin/internal/config"
	"fjacquet/aqi-bulletin/internal/extractor"
	"fjacquet/aqi-bulletin/internal/fetcher"
	"fjacquet/aqi-bulletin/internal/locator"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/normalizer"
	"fjacquet/aqi-bulletin/internal/observability"
	"fjacquet/aqi-bulletin/internal/pipeline"
	"fjacquet/aqi-bulletin/internal/publisher"
	"fjacquet/aqi-bulletin/internal/writer"

	"github.com/jonboulle/clockwork"
)

// Container holds all application dependencies and provides methods to access them.
// It is immutable after creation: fields are private and only reachable
// through getters.
type Container struct {
	logger     logging.Logger
	config     *config.Config
	clock      clockwork.Clock
	locator    *locator.Locator
	classifier *availability.Classifier
	metrics    *observability.Metrics
	publisher  publisher.Publisher
	writer     *writer.CSVWriter
	pipeline   *pipeline.Pipeline
}

// NewContainer creates and wires all application dependencies using the
// real clock and a logger built from cfg.
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	return NewContainerWith(cfg, config.NewLogger(cfg), clockwork.NewRealClock())
}

// NewContainerWith wires the application around an explicit logger and clock.
func NewContainerWith(cfg *config.Config, logger logging.Logger, clock clockwork.Clock) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		logger = config.NewLogger(cfg)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	location, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid UTC offset: %w", err)
	}
	cutoff, err := cfg.Cutoff()
	if err != nil {
		return nil, fmt.Errorf("invalid publish cutoff: %w", err)
	}

	metrics := observability.NewMetrics()
	loc := locator.New(cfg.Source.BaseURL)
	classifier := availability.NewClassifier(clock, location, cutoff)

	source := fetcher.NewSource(fetcher.NewHTTPFetcher(cfg.Source.Timeout, cfg.Source.UserAgent, logger))
	extOpts := []extractor.Option{extractor.WithFetchObserver(metrics)}
	if cfg.Archive.Directory != "" {
		extOpts = append(extOpts, extractor.WithArchiver(writer.NewPDFArchive(cfg.Archive.Directory, logger)))
	}
	ext := extractor.NewPDFTableExtractor(source, logger, extOpts...)

	norm := normalizer.New(normalizer.Options{DedupePollutants: cfg.Normalize.DedupePollutants}, logger)
	csvWriter := writer.NewCSVWriter(cfg.Output.Directory, logger)

	pipeOpts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	if cfg.Debug.RawDirectory != "" {
		pipeOpts = append(pipeOpts, pipeline.WithRawDumper(writer.NewRawDumper(cfg.Debug.RawDirectory, logger)))
	}
	var pub publisher.Publisher
	if cfg.KafkaEnabled() {
		pub = publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		pipeOpts = append(pipeOpts, pipeline.WithPublisher(pub))
	}

	p := pipeline.New(loc, ext, classifier, norm, csvWriter, logger, pipeOpts...)

	logger.Debug("Container initialized successfully",
		logging.F(logging.FieldURL, loc.Base()),
		logging.F(logging.FieldUTCOffset, cfg.Schedule.UTCOffset),
		logging.F(logging.FieldCutoff, cfg.Schedule.PublishCutoff),
		logging.F("kafka_enabled", pub != nil),
		logging.F("archive_enabled", cfg.Archive.Directory != ""))

	return &Container{
		logger:     logger,
		config:     cfg,
		clock:      clock,
		locator:    loc,
		classifier: classifier,
		metrics:    metrics,
		publisher:  pub,
		writer:     csvWriter,
		pipeline:   p,
	}, nil
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLocator returns the bulletin locator.
func (c *Container) GetLocator() *locator.Locator {
	return c.locator
}

// GetClassifier returns the availability classifier.
func (c *Container) GetClassifier() *availability.Classifier {
	return c.classifier
}

// GetMetrics returns the run metrics.
func (c *Container) GetMetrics() *observability.Metrics {
	return c.metrics
}

// NewBackfill returns a Backfill over the pipeline, paced by the configured
// interval. With skipExisting, dates that already have a record are skipped.
func (c *Container) NewBackfill(skipExisting bool) *batch.Backfill {
	opts := []batch.Option{batch.WithRateLimit(c.config.Backfill.Interval)}
	if skipExisting {
		opts = append(opts, batch.WithSkipExisting(c.writer.Exists))
	}
	return batch.NewBackfill(c.pipeline, c.logger, opts...)
}

// GetPipeline returns the fully wired ingestion pipeline.
func (c *Container) GetPipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Close flushes the metrics textfile, if configured, and releases the
// publisher connection.
func (c *Container) Close() error {
	var firstErr error
	if path := c.config.Metrics.Textfile; path != "" {
		if err := c.metrics.WriteTextfile(path); err != nil {
			c.logger.WithError(err).Warn("Failed to write metrics textfile")
			firstErr = err
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close publisher")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.logger.Debug("Container closed")
	return firstErr
}
