package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/adhocore/gronx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/models"
)

func TestRetryErrorWrapsCause(t *testing.T) {
	cause := errors.New("rate limited")
	err := Retry(30*time.Second, cause)

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 30*time.Second, retryErr.Defer)
	assert.ErrorIs(t, err, cause)
}

func TestCapacityLimiter(t *testing.T) {
	l := newCapacityLimiter(2)

	assert.True(t, l.tryAcquire())
	assert.True(t, l.tryAcquire())
	assert.False(t, l.tryAcquire())

	l.release()
	assert.True(t, l.tryAcquire())
}

func TestPollIntervalJitterBounds(t *testing.T) {
	cfg := &config.QueueConfig{
		PollInterval:       time.Second,
		PollIntervalJitter: 500 * time.Millisecond,
	}
	w := NewWorker("w-0", nil, cfg, nil, newCapacityLimiter(1))

	for i := 0; i < 100; i++ {
		d := w.pollInterval()
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestPollIntervalWithoutJitter(t *testing.T) {
	cfg := &config.QueueConfig{PollInterval: 2 * time.Second}
	w := NewWorker("w-0", nil, cfg, nil, newCapacityLimiter(1))
	assert.Equal(t, 2*time.Second, w.pollInterval())
}

func TestTimeoutForKind(t *testing.T) {
	cfg := &config.QueueConfig{
		JobTimeout:         120 * time.Second,
		ConsolidateTimeout: 180 * time.Second,
	}
	w := NewWorker("w-0", nil, cfg, nil, newCapacityLimiter(1))

	assert.Equal(t, 180*time.Second, w.timeoutFor(models.JobConsolidateUser))
	assert.Equal(t, 120*time.Second, w.timeoutFor(models.JobExtractFacts))
	assert.Equal(t, 120*time.Second, w.timeoutFor(models.JobDecayStale))
}

func TestDefaultScheduleExpressionsAreValid(t *testing.T) {
	gron := gronx.New()
	for _, entry := range DefaultSchedule {
		_, err := gron.IsDue(entry.Expr, time.Now())
		assert.NoError(t, err, "expr %q", entry.Expr)
	}
}

func TestScheduleFiresAtExpectedTimes(t *testing.T) {
	g := gronx.New()

	sundayTwoAM := time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC) // a Sunday
	due, err := g.IsDue("0 2 * * 0", sundayTwoAM)
	require.NoError(t, err)
	assert.True(t, due)

	mondayTwoAM := sundayTwoAM.Add(24 * time.Hour)
	due, err = g.IsDue("0 2 * * 0", mondayTwoAM)
	require.NoError(t, err)
	assert.False(t, due)

	// A tick 30s into the minute is truncated to the minute before matching,
	// as the scheduler does.
	due, err = g.IsDue("0 0,6,12,18 * * *", time.Date(2025, 3, 2, 18, 0, 30, 0, time.UTC).Truncate(time.Minute))
	require.NoError(t, err)
	assert.True(t, due)

	due, err = g.IsDue("0 3 * * *", time.Date(2025, 3, 2, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, due)
}
