// Package extractor turns a bulletin location into a raw cell matrix.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"time"

	"fjacquet/aqi-bulletin/internal/bulletinerror"
	"fjacquet/aqi-bulletin/internal/fetcher"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/models"
	"fjacquet/aqi-bulletin/internal/pdftable"
)

// Extraction stages reported in ExtractionError.Stage.
const (
	StageFetch    = "fetch"
	StageValidate = "validate"
	StageParse    = "parse"
	StageDetect   = "detect"
)

var pdfMagic = []byte("%PDF-")

var errNotPDF = errors.New("payload is not a PDF document")

// Extractor defines the interface for pulling the primary table out of a
// bulletin. This interface allows the pipeline to be tested without network
// or PDF fixtures.
type Extractor interface {
	// Extract fetches the document at location and returns its table.
	// Every failure is an *bulletinerror.ExtractionError.
	Extract(ctx context.Context, location string) (models.RawExtraction, error)
}

// Archiver stores the raw document bytes once they have been fetched.
type Archiver interface {
	Archive(location string, data []byte) error
}

// FetchObserver is notified of the duration of every fetch attempt.
type FetchObserver interface {
	ObserveFetch(d time.Duration, err error)
}

// PDFTableExtractor fetches a PDF and runs lattice table detection on it.
type PDFTableExtractor struct {
	fetcher  fetcher.Fetcher
	options  pdftable.Options
	archiver Archiver
	observer FetchObserver
	logger   logging.Logger
}

// Option configures a PDFTableExtractor.
type Option func(*PDFTableExtractor)

// WithArchiver stores every successfully fetched PDF through a.
func WithArchiver(a Archiver) Option {
	return func(e *PDFTableExtractor) { e.archiver = a }
}

// WithFetchObserver reports fetch durations to o.
func WithFetchObserver(o FetchObserver) Option {
	return func(e *PDFTableExtractor) { e.observer = o }
}

// NewPDFTableExtractor creates an extractor reading documents through f.
func NewPDFTableExtractor(f fetcher.Fetcher, logger logging.Logger, opts ...Option) *PDFTableExtractor {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	e := &PDFTableExtractor{
		fetcher: f,
		options: pdftable.DefaultOptions(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract implements Extractor.
func (e *PDFTableExtractor) Extract(ctx context.Context, location string) (models.RawExtraction, error) {
	log := e.logger.WithField(logging.FieldURL, location)

	start := time.Now()
	data, err := e.fetcher.Fetch(ctx, location)
	if e.observer != nil {
		e.observer.ObserveFetch(time.Since(start), err)
	}
	if err != nil {
		return models.RawExtraction{}, e.fail(location, StageFetch, err)
	}

	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return models.RawExtraction{}, e.fail(location, StageValidate, errNotPDF)
	}

	if e.archiver != nil {
		if err := e.archiver.Archive(location, data); err != nil {
			log.WithError(err).Warn("Failed to archive bulletin PDF")
		}
	}

	doc, err := pdftable.ExtractDocument(data, e.options)
	if err != nil {
		stage := StageParse
		if errors.Is(err, pdftable.ErrNoTable) {
			stage = StageDetect
		}
		return models.RawExtraction{}, e.fail(location, stage, err)
	}

	rows := doc.Rows()
	log.Debug("Extracted lattice tables",
		logging.F(logging.FieldPages, doc.Pages),
		logging.F(logging.FieldTables, len(doc.Tables)),
		logging.F(logging.FieldCount, len(rows)))

	return models.RawExtraction{
		Source: location,
		Pages:  doc.Pages,
		Rows:   rows,
	}, nil
}

func (e *PDFTableExtractor) fail(location, stage string, err error) error {
	return &bulletinerror.ExtractionError{Location: location, Stage: stage, Err: err}
}

// MockExtractor implements Extractor for testing purposes.
// It returns predefined data instead of fetching anything.
type MockExtractor struct {
	MockRaw models.RawExtraction
	MockErr error
	Calls   []string
}

// NewMockExtractor creates a new MockExtractor with the given mock data.
func NewMockExtractor(raw models.RawExtraction, err error) *MockExtractor {
	return &MockExtractor{MockRaw: raw, MockErr: err}
}

// Extract returns the predefined extraction or error.
func (m *MockExtractor) Extract(ctx context.Context, location string) (models.RawExtraction, error) {
	m.Calls = append(m.Calls, location)
	if m.MockErr != nil {
		return models.RawExtraction{}, m.MockErr
	}
	raw := m.MockRaw
	raw.Source = location
	return raw, nil
}
