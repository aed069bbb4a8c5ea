package cbbackup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/function61/cloudsqlbackup/pkg/cbmetrics"
	"github.com/function61/cloudsqlbackup/pkg/cbservice"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/function61/gokit/logex"
	"github.com/juju/clock"
	"github.com/sethvargo/go-retry"
)

const (
	// maximum number of initiate+check cycles per retry sequence
	RetryLimit = 3

	// delay before the status check of retry n is 2^n of this
	DefaultBackoffUnit = time.Second
)

const (
	PhaseInitiate = "initiate"
	PhaseWait     = "wait"
	PhaseCheck    = "check status"
)

var ErrAborted = errors.New("retry sequence aborted")

// one initiate -> wait -> check cycle
type AttemptRecord struct {
	Attempt       int // 0-based retry index. -1 for the initial attempt
	OperationName string
	Phase         string // phase that failed. empty if the cycle ran through
	Delay         time.Duration
	Outcome       cbtypes.BackupOutcome
	Err           error
}

func (a AttemptRecord) Succeeded() bool {
	return a.Err == nil && a.Outcome.Success
}

// human readable error of an unsuccessful attempt, used in alerts
func (a AttemptRecord) ErrorText() string {
	switch a.Phase {
	case PhaseInitiate:
		return fmt.Sprintf("initiate failed: %v", unwrapServiceError(a.Err))
	case PhaseCheck:
		return fmt.Sprintf("status check failed: %v", unwrapServiceError(a.Err))
	case PhaseWait:
		return fmt.Sprintf("aborted: %v", a.Err)
	default:
		return a.Outcome.ErrorDetail.String()
	}
}

func (a AttemptRecord) metricsResult() string {
	switch {
	case a.Succeeded():
		return cbmetrics.AttemptSucceeded
	case a.Phase == PhaseInitiate:
		return cbmetrics.AttemptInitiateFailed
	case a.Phase == PhaseCheck:
		return cbmetrics.AttemptCheckFailed
	default:
		return cbmetrics.AttemptNotDone
	}
}

type RetryResult struct {
	Succeeded bool
	Attempts  []AttemptRecord
}

// error of the final attempt. empty if succeeded or no attempts were made.
func (r *RetryResult) LastError() string {
	if r.Succeeded || len(r.Attempts) == 0 {
		return ""
	}

	return r.Attempts[len(r.Attempts)-1].ErrorText()
}

type Coordinator struct {
	service     cbservice.BackupService
	clock       clock.Clock
	backoffUnit time.Duration
	metrics     *cbmetrics.Metrics
	logl        *logex.Leveled
}

func NewCoordinator(
	service cbservice.BackupService,
	clk clock.Clock,
	backoffUnit time.Duration,
	metrics *cbmetrics.Metrics,
	logger *log.Logger,
) *Coordinator {
	if backoffUnit <= 0 {
		backoffUnit = DefaultBackoffUnit
	}

	return &Coordinator{
		service:     service,
		clock:       clk,
		backoffUnit: backoffUnit,
		metrics:     metrics,
		logl:        logex.Levels(logger),
	}
}

// initiates and checks right away, without waiting in between
func (c *Coordinator) Immediate(ctx context.Context, instanceId string) AttemptRecord {
	record := c.runAttempt(ctx, instanceId, "initial attempt", 0)
	record.Attempt = -1

	return record
}

// Run drives the retry state machine for one instance. attempt n initiates a
// fresh backup, waits 2^n backoff units and then checks its status. the
// sequence ends at the first successful check or after RetryLimit attempts.
//
// the only error returned is ErrAborted (wrapping the context's error) if ctx
// is done before the sequence ends. the partial result is returned with it.
func (c *Coordinator) Run(ctx context.Context, instanceId string) (*RetryResult, error) {
	result := &RetryResult{}

	// 1, 2, 4 units. stops after RetryLimit delays which caps the attempt count
	backoff := retry.WithMaxRetries(RetryLimit, retry.NewExponential(c.backoffUnit))

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %v", ErrAborted, err)
		}

		delay, stop := backoff.Next()
		if stop {
			break
		}

		record := c.runAttempt(ctx, instanceId, fmt.Sprintf("retry %d", attempt+1), delay)
		record.Attempt = attempt
		result.Attempts = append(result.Attempts, record)

		if record.Phase == PhaseWait {
			return result, fmt.Errorf("%w: %v", ErrAborted, record.Err)
		}

		if record.Succeeded() {
			c.logl.Info.Printf(
				"backup successful on retry %d for %s (operation %s)",
				attempt+1,
				instanceId,
				record.OperationName)

			result.Succeeded = true
			return result, nil
		}

		c.logl.Error.Printf("retry %d failed for %s: %s", attempt+1, instanceId, record.ErrorText())
	}

	c.logl.Error.Printf("backup failed after %d retries for %s", RetryLimit, instanceId)

	return result, nil
}

func (c *Coordinator) runAttempt(ctx context.Context, instanceId string, label string, delay time.Duration) AttemptRecord {
	record := c.attempt(ctx, instanceId, label, delay)

	if record.Phase != PhaseWait {
		c.metrics.Attempts.WithLabelValues(record.metricsResult()).Inc()
	}

	return record
}

func (c *Coordinator) attempt(ctx context.Context, instanceId string, label string, delay time.Duration) AttemptRecord {
	record := AttemptRecord{Delay: delay}

	c.logl.Info.Printf("%s for %s", label, instanceId)

	handle, err := Initiate(ctx, c.service, instanceId, c.clock.Now(), c.logl)
	if err != nil {
		record.Phase = PhaseInitiate
		record.Err = err
		return record
	}

	record.OperationName = handle.Name

	// waits after initiating, before checking. does not bound how long
	// initiating itself takes.
	if delay > 0 {
		c.logl.Debug.Printf("%s: waiting %s before checking operation %s", label, delay, handle.Name)

		if err := c.wait(ctx, delay); err != nil {
			record.Phase = PhaseWait
			record.Err = err
			return record
		}

		c.metrics.ObserveBackoff(delay)
	}

	outcome, err := CheckStatus(ctx, c.service, handle, c.logl)
	if err != nil {
		record.Phase = PhaseCheck
		record.Err = err
		return record
	}

	record.Outcome = outcome

	if !outcome.Success {
		c.logl.Info.Printf(
			"%s: operation %s for %s not done (status %s): %s",
			label,
			handle.Name,
			instanceId,
			outcome.Status,
			outcome.ErrorDetail.String())
	}

	return record
}

func (c *Coordinator) wait(ctx context.Context, delay time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(delay):
		return nil
	}
}

func unwrapServiceError(err error) error {
	var serviceErr *cbtypes.BackupServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Err
	}

	return err
}
