package cbbackup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/function61/cloudsqlbackup/pkg/cbmetrics"
	"github.com/function61/cloudsqlbackup/pkg/cbservice/cbservicetest"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// records waits and fires them immediately. a blocking clock never fires.
type fakeClock struct {
	clock.Clock
	now      time.Time
	blocking bool

	mu    sync.Mutex
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 5, 15, 4, 5, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waits = append(f.waits, d)

	if f.blocking {
		return nil
	}

	fired := make(chan time.Time, 1)
	fired <- f.now.Add(d)
	return fired
}

func (f *fakeClock) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]time.Duration{}, f.waits...)
}

func notDone(message string) cbservicetest.StatusResult {
	return cbservicetest.StatusResult{
		Status: "FAILED",
		Error:  &cbtypes.ErrorDetail{Errors: []cbtypes.ErrorDetailItem{{Code: "INTERNAL_ERROR", Message: message}}},
	}
}

func newTestCoordinator(svc *cbservicetest.Fake, clk *fakeClock) (*Coordinator, *cbmetrics.Metrics) {
	metrics := cbmetrics.New(prometheus.NewRegistry())

	return NewCoordinator(svc, clk, time.Second, metrics, log.New(io.Discard, "", 0)), metrics
}

func TestRunSucceedsOnFirstRetry(t *testing.T) {
	svc := &cbservicetest.Fake{}
	clk := newFakeClock()
	coordinator, metrics := newTestCoordinator(svc, clk)

	result, err := coordinator.Run(context.Background(), "db-prod-1")
	require.NoError(t, err)

	assert.True(t, result.Succeeded)
	assert.Len(t, result.Attempts, 1)
	assert.Equal(t, "", result.LastError())
	assert.Equal(t, []time.Duration{1 * time.Second}, clk.Waits())
	assert.Len(t, svc.Inserts(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Attempts.WithLabelValues(cbmetrics.AttemptSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BackoffSeconds))
}

func TestRunStopsAfterSuccess(t *testing.T) {
	svc := &cbservicetest.Fake{
		StatusResults: []cbservicetest.StatusResult{
			notDone("first"),
			{Status: "DONE"},
			notDone("never reached"),
		},
	}
	clk := newFakeClock()
	coordinator, _ := newTestCoordinator(svc, clk)

	result, err := coordinator.Run(context.Background(), "db-prod-1")
	require.NoError(t, err)

	assert.True(t, result.Succeeded)
	assert.Len(t, result.Attempts, 2)
	assert.Len(t, svc.Inserts(), 2)
	assert.Equal(t, []string{"op-1", "op-2"}, svc.Gets())
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, clk.Waits())
}

func TestRunExhausts(t *testing.T) {
	svc := &cbservicetest.Fake{
		StatusResults: []cbservicetest.StatusResult{
			notDone("first"),
			notDone("second"),
			notDone("third"),
		},
	}
	clk := newFakeClock()
	coordinator, metrics := newTestCoordinator(svc, clk)

	result, err := coordinator.Run(context.Background(), "db-prod-2")
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.Len(t, result.Attempts, RetryLimit)
	assert.Len(t, svc.Inserts(), RetryLimit, "never initiates a 4th attempt")
	assert.Equal(t, "INTERNAL_ERROR: third", result.LastError())

	// each retry polls its own fresh operation
	assert.Equal(t, []string{"op-1", "op-2", "op-3"}, svc.Gets())

	waits := clk.Waits()
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, waits)
	assert.Equal(t, 3*time.Second, waits[0]+waits[1], "cumulative delay before attempt index 2")

	for i, attempt := range result.Attempts {
		assert.Equal(t, i, attempt.Attempt)
		assert.Equal(t, "", attempt.Phase)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Attempts.WithLabelValues(cbmetrics.AttemptNotDone)))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.BackoffSeconds))
}

func TestRunInitiateFailuresCountAsAttempts(t *testing.T) {
	svc := &cbservicetest.Fake{
		InsertResults: []cbservicetest.InsertResult{{Err: errors.New("quota exceeded")}},
	}
	clk := newFakeClock()
	coordinator, metrics := newTestCoordinator(svc, clk)

	result, err := coordinator.Run(context.Background(), "db-prod-2")
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.Len(t, svc.Inserts(), RetryLimit)
	assert.Empty(t, svc.Gets())
	assert.Empty(t, clk.Waits(), "no wait without an operation to check")
	assert.Equal(t, "initiate failed: quota exceeded", result.LastError())
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Attempts.WithLabelValues(cbmetrics.AttemptInitiateFailed)))
}

func TestRunRecoversFromInitiateFailure(t *testing.T) {
	svc := &cbservicetest.Fake{
		InsertResults: []cbservicetest.InsertResult{
			{Err: errors.New("unavailable")},
			{OperationName: "op-b"},
		},
	}
	clk := newFakeClock()
	coordinator, _ := newTestCoordinator(svc, clk)

	result, err := coordinator.Run(context.Background(), "db-prod-1")
	require.NoError(t, err)

	assert.True(t, result.Succeeded)
	assert.Equal(t, PhaseInitiate, result.Attempts[0].Phase)
	assert.Equal(t, "op-b", result.Attempts[1].OperationName)

	// attempt 1 waits 2 units even though attempt 0 never waited
	assert.Equal(t, []time.Duration{2 * time.Second}, clk.Waits())
}

func TestRunCheckFailure(t *testing.T) {
	svc := &cbservicetest.Fake{
		StatusResults: []cbservicetest.StatusResult{{Err: errors.New("deadline exceeded")}},
	}
	coordinator, _ := newTestCoordinator(svc, newFakeClock())

	result, err := coordinator.Run(context.Background(), "db-prod-2")
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.Len(t, svc.Gets(), RetryLimit)
	assert.Equal(t, "status check failed: deadline exceeded", result.LastError())
}

func TestRunBackoffUnit(t *testing.T) {
	svc := &cbservicetest.Fake{
		StatusResults: []cbservicetest.StatusResult{notDone("x")},
	}
	clk := newFakeClock()

	coordinator := NewCoordinator(svc, clk, 10*time.Millisecond, cbmetrics.Discard(), log.New(io.Discard, "", 0))

	_, err := coordinator.Run(context.Background(), "db-prod-2")
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, clk.Waits())
}

func TestRunAbortedBeforeStart(t *testing.T) {
	svc := &cbservicetest.Fake{}
	coordinator, _ := newTestCoordinator(svc, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := coordinator.Run(ctx, "db-prod-1")
	require.True(t, errors.Is(err, ErrAborted))
	assert.Empty(t, result.Attempts)
	assert.Empty(t, svc.Inserts())
}

func TestRunAbortedDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &cbservicetest.Fake{OnInsert: cancel}
	clk := newFakeClock()
	clk.blocking = true
	coordinator, _ := newTestCoordinator(svc, clk)

	result, err := coordinator.Run(ctx, "db-prod-1")
	require.True(t, errors.Is(err, ErrAborted))

	assert.Len(t, result.Attempts, 1)
	assert.Equal(t, PhaseWait, result.Attempts[0].Phase)
	assert.Empty(t, svc.Gets(), "status never checked after abort")
}

func TestImmediate(t *testing.T) {
	svc := &cbservicetest.Fake{
		StatusResults: []cbservicetest.StatusResult{notDone("nope")},
	}
	clk := newFakeClock()
	coordinator, _ := newTestCoordinator(svc, clk)

	record := coordinator.Immediate(context.Background(), "db-prod-1")

	assert.False(t, record.Succeeded())
	assert.Equal(t, -1, record.Attempt)
	assert.Equal(t, "op-1", record.OperationName)
	assert.Equal(t, "INTERNAL_ERROR: nope", record.ErrorText())
	assert.Empty(t, clk.Waits())
}

func TestRunLogsTimeline(t *testing.T) {
	svc := &cbservicetest.Fake{
		StatusResults: []cbservicetest.StatusResult{notDone("disk full")},
	}

	logs := &bytes.Buffer{}
	coordinator := NewCoordinator(svc, newFakeClock(), time.Second, cbmetrics.Discard(), log.New(logs, "", 0))

	_, err := coordinator.Run(context.Background(), "db-prod-2")
	require.NoError(t, err)

	output := logs.String()
	for _, expected := range []string{
		"retry 1 for db-prod-2",
		"operation op-1",
		"retry 3 failed for db-prod-2: INTERNAL_ERROR: disk full",
		"backup failed after 3 retries for db-prod-2",
	} {
		assert.Contains(t, output, expected)
	}
}
