package availability

import (
	"errors"
	"testing"
	"time"

	"fjacquet/aqi-bulletin/internal/bulletinerror"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("UTC+05:30", 5*3600+1800)

func classifierAt(local time.Time) *Classifier {
	return NewClassifier(clockwork.NewFakeClockAt(local), ist, DefaultPublishCutoff)
}

func TestClassify(t *testing.T) {
	cause := &bulletinerror.ExtractionError{Location: "u", Stage: "fetch", Err: errors.New("404")}
	may1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		now          time.Time
		target       time.Time
		notPublished bool
	}{
		{"tomorrow", time.Date(2024, 5, 1, 12, 0, 0, 0, ist), may1.AddDate(0, 0, 1), true},
		{"today before cutoff", time.Date(2024, 5, 1, 10, 0, 0, 0, ist), may1, true},
		{"today one second before cutoff", time.Date(2024, 5, 1, 16, 59, 59, 0, ist), may1, true},
		{"today at cutoff", time.Date(2024, 5, 1, 17, 0, 0, 0, ist), may1, false},
		{"today after cutoff", time.Date(2024, 5, 1, 20, 0, 0, 0, ist), may1, false},
		{"yesterday", time.Date(2024, 5, 1, 8, 0, 0, 0, ist), may1.AddDate(0, 0, -1), false},
		{"far future", time.Date(2024, 5, 1, 23, 0, 0, 0, ist), may1.AddDate(1, 0, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifierAt(tt.now).Classify(cause, tt.target)
			require.Error(t, err)
			assert.Equal(t, tt.notPublished, errors.Is(err, bulletinerror.ErrNotYetPublished))
			assert.Equal(t, !tt.notPublished, errors.Is(err, bulletinerror.ErrGenuineFailure))
			assert.True(t, errors.Is(err, bulletinerror.ErrExtraction), "cause stays in the chain")
		})
	}
}

func TestClassify_UsesConfiguredOffset(t *testing.T) {
	// 20:00 UTC on April 30 is 01:30 on May 1 in +05:30: May 1 is "today"
	// and before the cutoff.
	c := NewClassifier(clockwork.NewFakeClockAt(time.Date(2024, 4, 30, 20, 0, 0, 0, time.UTC)), ist, DefaultPublishCutoff)

	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), c.Today())

	err := c.Classify(errors.New("x"), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	var nyp *bulletinerror.NotYetPublishedError
	require.True(t, errors.As(err, &nyp))
	assert.Equal(t, 1, nyp.Now.Hour())
	assert.Equal(t, 30, nyp.Now.Minute())
}

func TestClassify_GenuineReason(t *testing.T) {
	err := classifierAt(time.Date(2024, 5, 1, 20, 0, 0, 0, ist)).
		Classify(errors.New("x"), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	var genuine *bulletinerror.GenuineFailureError
	require.True(t, errors.As(err, &genuine))
	assert.Equal(t, bulletinerror.ReasonWindowPassed, genuine.Reason)
}

func TestNewClassifier_Defaults(t *testing.T) {
	c := NewClassifier(nil, nil, DefaultPublishCutoff)
	assert.NotNil(t, c.clock)
	assert.Equal(t, time.UTC, c.location)
}
