package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"fjacquet/aqi-bulletin/internal/bulletinerror"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRunner implements Runner for testing
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, date time.Time) (pipeline.Result, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(pipeline.Result), args.Error(1)
}

func day(d int) time.Time {
	return time.Date(2024, 4, d, 0, 0, 0, 0, time.UTC)
}

func TestNewDateRange(t *testing.T) {
	dr, err := NewDateRange(day(28), day(30))
	require.NoError(t, err)
	assert.Equal(t, "2024-04-28_2024-04-30", dr.String())
	assert.Equal(t, 3, dr.Days())
	assert.Equal(t, []time.Time{day(28), day(29), day(30)}, dr.Dates())

	single, err := NewDateRange(day(5), day(5))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(5)}, single.Dates())

	_, err = NewDateRange(day(30), day(28))
	assert.Error(t, err)
}

func TestDateRange_CrossesMonthEnd(t *testing.T) {
	dr, err := NewDateRange(day(30), time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, dr.Days())
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), dr.Dates()[1])
}

func TestDateRange_Empty(t *testing.T) {
	var dr DateRange
	assert.Equal(t, "", dr.String())
	assert.Equal(t, 0, dr.Days())
	assert.Empty(t, dr.Dates())
}

func TestBackfill_Run(t *testing.T) {
	runner := &MockRunner{}
	genuine := &bulletinerror.GenuineFailureError{Date: day(29), Reason: bulletinerror.ReasonWindowPassed}
	nyp := &bulletinerror.NotYetPublishedError{Date: day(30)}

	runner.On("Run", mock.Anything, day(28)).Return(pipeline.Result{Date: day(28), Outcome: pipeline.OutcomePublished}, nil)
	runner.On("Run", mock.Anything, day(29)).Return(pipeline.Result{Date: day(29), Outcome: pipeline.OutcomeFailed, Err: genuine}, genuine)
	runner.On("Run", mock.Anything, day(30)).Return(pipeline.Result{Date: day(30), Outcome: pipeline.OutcomeNotYetPublished, Err: nyp}, nyp)

	logger := logging.NewMockLogger()
	dr, err := NewDateRange(day(28), day(30))
	require.NoError(t, err)

	summary, err := NewBackfill(runner, logger).Run(context.Background(), dr)
	require.Error(t, err)
	assert.ErrorIs(t, err, bulletinerror.ErrGenuineFailure)
	assert.Contains(t, err.Error(), "2024-04-29")

	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.NotYetPublished)
	assert.Len(t, summary.Results, 3)
	runner.AssertExpectations(t)
	assert.True(t, logger.HasEntry("INFO", "Backfill completed"))
}

func TestBackfill_AllPublished(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, mock.Anything).Return(pipeline.Result{Outcome: pipeline.OutcomePublished}, nil)

	dr, err := NewDateRange(day(1), day(3))
	require.NoError(t, err)
	summary, err := NewBackfill(runner, logging.NewMockLogger()).Run(context.Background(), dr)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Published)
	runner.AssertNumberOfCalls(t, "Run", 3)
}

func TestBackfill_SkipExisting(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, day(2)).Return(pipeline.Result{Outcome: pipeline.OutcomePublished}, nil)

	exists := func(date time.Time) bool { return !date.Equal(day(2)) }
	dr, err := NewDateRange(day(1), day(3))
	require.NoError(t, err)

	summary, err := NewBackfill(runner, logging.NewMockLogger(), WithSkipExisting(exists)).Run(context.Background(), dr)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Published)
	runner.AssertExpectations(t)
	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestBackfill_StopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, day(1)).
		Run(func(mock.Arguments) { cancel() }).
		Return(pipeline.Result{Outcome: pipeline.OutcomeFailed}, errors.New("run aborted: context canceled"))

	dr, err := NewDateRange(day(1), day(3))
	require.NoError(t, err)

	summary, err := NewBackfill(runner, logging.NewMockLogger()).Run(ctx, dr)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, summary.Results, 1)
	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestBackfill_RateLimitHonoursContext(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, mock.Anything).Return(pipeline.Result{Outcome: pipeline.OutcomePublished}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	dr, err := NewDateRange(day(1), day(3))
	require.NoError(t, err)

	// The first run takes the only token; the second would wait an hour.
	summary, err := NewBackfill(runner, logging.NewMockLogger(), WithRateLimit(time.Hour)).Run(ctx, dr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill aborted")
	assert.Equal(t, 1, summary.Published)
}
