package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fjacquet/aqi-bulletin/internal/availability"
	"fjacquet/aqi-bulletin/internal/bulletinerror"
	"fjacquet/aqi-bulletin/internal/extractor"
	"fjacquet/aqi-bulletin/internal/fetcher"
	"fjacquet/aqi-bulletin/internal/locator"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/models"
	"fjacquet/aqi-bulletin/internal/normalizer"
	"fjacquet/aqi-bulletin/internal/observability"
	"fjacquet/aqi-bulletin/internal/writer"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ist      = time.FixedZone("UTC+05:30", 5*3600+1800)
	may1     = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	morning  = time.Date(2024, 5, 1, 10, 0, 0, 0, ist)
	evening  = time.Date(2024, 5, 1, 20, 0, 0, 0, ist)
	rawTable = models.RawExtraction{Rows: [][]string{
		{"S.No", "City", "Air Quality", "Index Value", "Prominent Pollutant", "Based on number of monitoring stations"},
		{"1", "DELHI", "Poor", "342", "PM2.5/PM10", "38/40 #"},
		{"2", "XYZ", "Good", "", "O3", "10/10"},
	}}
)

type fakePublisher struct {
	tables []models.BulletinTable
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, table models.BulletinTable) error {
	if f.err != nil {
		return f.err
	}
	f.tables = append(f.tables, table)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type recordingDumper struct {
	dumped []models.RawExtraction
}

func (r *recordingDumper) Dump(date time.Time, raw models.RawExtraction) (string, error) {
	r.dumped = append(r.dumped, raw)
	return "dump.csv", nil
}

type harness struct {
	pipeline *Pipeline
	ext      *extractor.MockExtractor
	metrics  *observability.Metrics
	logger   *logging.MockLogger
	outDir   string
}

func newHarness(t *testing.T, now time.Time, raw models.RawExtraction, extErr error, opts ...Option) *harness {
	t.Helper()
	logger := logging.NewMockLogger()
	outDir := t.TempDir()
	ext := extractor.NewMockExtractor(raw, extErr)
	metrics := observability.NewMetrics()

	opts = append([]Option{WithMetrics(metrics)}, opts...)
	p := New(
		locator.New("https://cpcb.test/upload/Downloads"),
		ext,
		availability.NewClassifier(clockwork.NewFakeClockAt(now), ist, 17*time.Hour),
		normalizer.New(normalizer.Options{}, logger),
		writer.NewCSVWriter(outDir, logger),
		logger,
		opts...,
	)
	return &harness{pipeline: p, ext: ext, metrics: metrics, logger: logger, outDir: outDir}
}

func extractionFailure(cause error) error {
	return &bulletinerror.ExtractionError{Location: "u", Stage: extractor.StageFetch, Err: cause}
}

func TestRun_Published(t *testing.T) {
	h := newHarness(t, evening, rawTable, nil)

	res, err := h.pipeline.Run(context.Background(), may1)
	require.NoError(t, err)

	assert.Equal(t, OutcomePublished, res.Outcome)
	assert.Equal(t, "https://cpcb.test/upload/Downloads/AQI_Bulletin_20240501.pdf", res.Source)
	assert.Equal(t, []string{res.Source}, h.ext.Calls)
	assert.Equal(t, filepath.Join(h.outDir, "2024-05-01.csv"), res.OutputPath)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 1, res.DroppedRows)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "city,level,index,pollutant,stations\nDelhi,Poor,342,\"PM10, PM2.5\",38\n", string(data))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Runs.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RowsWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RowsDropped))
	assert.Equal(t, float64(evening.Unix()), testutil.ToFloat64(h.metrics.LastSuccess))
}

func TestRun_ExtractionFailureClassification(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		target  time.Time
		outcome Outcome
	}{
		{"today before cutoff", morning, may1, OutcomeNotYetPublished},
		{"tomorrow", evening, may1.AddDate(0, 0, 1), OutcomeNotYetPublished},
		{"today after cutoff", evening, may1, OutcomeFailed},
		{"past date", morning, may1.AddDate(0, 0, -3), OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.now, models.RawExtraction{}, extractionFailure(errors.New("404")))

			res, err := h.pipeline.Run(context.Background(), tt.target)
			require.Error(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, err, res.Err)
			assert.Empty(t, res.OutputPath)

			if tt.outcome == OutcomeNotYetPublished {
				assert.True(t, errors.Is(err, bulletinerror.ErrNotYetPublished))
				assert.False(t, errors.Is(err, bulletinerror.ErrGenuineFailure))
			} else {
				assert.True(t, errors.Is(err, bulletinerror.ErrGenuineFailure))
				assert.False(t, errors.Is(err, bulletinerror.ErrNotYetPublished))
			}

			entries, _ := os.ReadDir(h.outDir)
			assert.Empty(t, entries, "no record written")
			assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Runs.WithLabelValues(string(tt.outcome))))
		})
	}
}

func TestRun_TimeoutIsGenuineEvenBeforeCutoff(t *testing.T) {
	h := newHarness(t, morning, models.RawExtraction{}, extractionFailure(fmt.Errorf("%w after 30s", fetcher.ErrTimeout)))

	res, err := h.pipeline.Run(context.Background(), may1)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	var genuine *bulletinerror.GenuineFailureError
	require.True(t, errors.As(err, &genuine))
	assert.Equal(t, bulletinerror.ReasonTimeout, genuine.Reason)
	assert.True(t, errors.Is(err, fetcher.ErrTimeout))
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness(t, morning, models.RawExtraction{}, extractionFailure(context.Canceled))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.pipeline.Run(ctx, may1)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, bulletinerror.ErrNotYetPublished))
}

func TestRun_SchemaDriftKeepsPriorRecord(t *testing.T) {
	drifted := models.RawExtraction{Rows: [][]string{
		{"S.No", "City", "Index"},
		{"1", "Delhi", "300"},
	}}
	h := newHarness(t, evening, drifted, nil)

	prior := filepath.Join(h.outDir, "2024-05-01.csv")
	require.NoError(t, os.WriteFile(prior, []byte("prior"), 0600))

	res, err := h.pipeline.Run(context.Background(), may1)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	var drift *bulletinerror.SchemaDriftError
	require.True(t, errors.As(err, &drift))
	assert.Equal(t, 2, drift.Columns)

	data, err := os.ReadFile(prior)
	require.NoError(t, err)
	assert.Equal(t, "prior", string(data))
	assert.True(t, h.logger.HasEntry("ERROR", "Bulletin run failed"))
}

func TestRun_RerunReplacesRecord(t *testing.T) {
	h := newHarness(t, evening, rawTable, nil)
	_, err := h.pipeline.Run(context.Background(), may1)
	require.NoError(t, err)

	h.ext.MockRaw = models.RawExtraction{Rows: [][]string{
		{"City", "Level", "Index", "Pollutant", "Stations"},
		{"AGRA", "Moderate", "120", "CO", "2/2"},
		{"KOCHI", "Good", "40", "O3", "1"},
	}}
	res, err := h.pipeline.Run(context.Background(), may1)
	require.NoError(t, err)

	rows, err := writer.ReadRecord(res.OutputPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Agra", rows[0].City)
}

func TestRun_PublisherAndDumper(t *testing.T) {
	pub := &fakePublisher{}
	dumper := &recordingDumper{}
	h := newHarness(t, evening, rawTable, nil, WithPublisher(pub), WithRawDumper(dumper))

	_, err := h.pipeline.Run(context.Background(), may1)
	require.NoError(t, err)

	require.Len(t, pub.tables, 1)
	assert.Equal(t, "Delhi", pub.tables[0].Rows[0].City)
	require.Len(t, dumper.dumped, 1)
	assert.Len(t, dumper.dumped[0].Rows, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Published))
}

func TestRun_PublisherFailureKeepsRecord(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	h := newHarness(t, evening, rawTable, nil, WithPublisher(pub))

	res, err := h.pipeline.Run(context.Background(), may1)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.OutputPath)
	_, statErr := os.Stat(res.OutputPath)
	assert.NoError(t, statErr)
}

func TestConvert(t *testing.T) {
	h := newHarness(t, morning, rawTable, nil)

	res, err := h.pipeline.Convert(context.Background(), may1, "/data/AQI_Bulletin_20240501.pdf")
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, res.Outcome)
	assert.Equal(t, []string{"/data/AQI_Bulletin_20240501.pdf"}, h.ext.Calls)
}

func TestConvert_FailureIsNeverNotYetPublished(t *testing.T) {
	h := newHarness(t, morning, models.RawExtraction{}, extractionFailure(errors.New("no such file")))

	res, err := h.pipeline.Convert(context.Background(), may1.AddDate(0, 0, 1), "missing.pdf")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	var genuine *bulletinerror.GenuineFailureError
	require.True(t, errors.As(err, &genuine))
	assert.Equal(t, bulletinerror.ReasonUnreadable, genuine.Reason)
}

func TestPipeline_Today(t *testing.T) {
	h := newHarness(t, time.Date(2024, 4, 30, 20, 0, 0, 0, time.UTC), models.RawExtraction{}, nil)
	assert.Equal(t, may1, h.pipeline.Today())
}
