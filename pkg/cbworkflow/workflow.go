// Handles one backup request event from decoding to alerting
package cbworkflow

import (
	"context"
	"log"
	"time"

	"github.com/function61/cloudsqlbackup/pkg/cbalert"
	"github.com/function61/cloudsqlbackup/pkg/cbbackup"
	"github.com/function61/cloudsqlbackup/pkg/cbmetrics"
	"github.com/function61/cloudsqlbackup/pkg/cbrequest"
	"github.com/function61/cloudsqlbackup/pkg/cbservice"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/function61/gokit/logex"
	"github.com/google/uuid"
	"github.com/juju/clock"
)

type Result string

const (
	ResultSucceeded    Result = "succeeded"     // first check reported done
	ResultRecovered    Result = "recovered"     // a retry succeeded
	ResultAlerted      Result = "alerted"       // retries exhausted, alert attempted
	ResultInvalidInput Result = "invalid_input" // malformed event. no backup, no alert
	ResultAborted      Result = "aborted"       // context done mid-sequence
	ResultInternal     Result = "internal_error"
)

// IsBackupFailure is true for results where the backup did not succeed
func (r Result) IsBackupFailure() bool {
	return r == ResultAlerted || r == ResultAborted || r == ResultInternal
}

type Workflow struct {
	service     cbservice.BackupService
	alerts      cbalert.Publisher
	clock       clock.Clock
	backoffUnit time.Duration
	metrics     *cbmetrics.Metrics
	logger      *log.Logger
}

func New(
	service cbservice.BackupService,
	alerts cbalert.Publisher,
	clk clock.Clock,
	backoffUnit time.Duration,
	metrics *cbmetrics.Metrics,
	logger *log.Logger,
) *Workflow {
	return &Workflow{
		service:     service,
		alerts:      alerts,
		clock:       clk,
		backoffUnit: backoffUnit,
		metrics:     metrics,
		logger:      logger,
	}
}

// HandleEvent processes one inbound event body. it never panics and never
// returns an error: every ending is logged and reflected in the Result.
func (w *Workflow) HandleEvent(ctx context.Context, body []byte) Result {
	logger := w.invocationLogger()

	req, err := cbrequest.DecodeEvent(body)
	if err != nil {
		logex.Levels(logger).Error.Printf("error processing message: %v", err)
		return w.finish(ResultInvalidInput)
	}

	return w.handleRequest(ctx, req, logger)
}

func (w *Workflow) HandleRequest(ctx context.Context, req cbtypes.BackupRequest) Result {
	return w.handleRequest(ctx, req, w.invocationLogger())
}

func (w *Workflow) handleRequest(ctx context.Context, req cbtypes.BackupRequest, logger *log.Logger) (result Result) {
	logl := logex.Levels(logger)

	defer func() {
		if recovered := recover(); recovered != nil {
			logl.Error.Printf("unexpected error handling %s: %v", req.InstanceId, recovered)
			result = w.finish(ResultInternal)
		}
	}()

	if req.InstanceId == "" {
		logl.Error.Println("error processing message: missing 'instance_id'")
		return w.finish(ResultInvalidInput)
	}

	coordinator := cbbackup.NewCoordinator(w.service, w.clock, w.backoffUnit, w.metrics, logger)

	first := coordinator.Immediate(ctx, req.InstanceId)
	if first.Succeeded() {
		logl.Info.Printf("backup succeeded for instance %s (operation %s)", req.InstanceId, first.OperationName)
		return w.finish(ResultSucceeded)
	}

	logl.Error.Printf("backup failed for instance %s: %s; retrying", req.InstanceId, first.ErrorText())

	retries, err := coordinator.Run(ctx, req.InstanceId)
	if err != nil {
		logl.Error.Printf("giving up on %s without alerting: %v", req.InstanceId, err)
		return w.finish(ResultAborted)
	}

	if retries.Succeeded {
		return w.finish(ResultRecovered)
	}

	alert := cbtypes.NewAlertMessage(req.InstanceId, retries.LastError(), w.clock.Now())

	if cbalert.PublishBestEffort(ctx, w.alerts, alert, logl) {
		w.metrics.Alerts.WithLabelValues(cbmetrics.AlertPublished).Inc()
	} else {
		w.metrics.Alerts.WithLabelValues(cbmetrics.AlertFailed).Inc()
	}

	return w.finish(ResultAlerted)
}

func (w *Workflow) finish(result Result) Result {
	w.metrics.Invocations.WithLabelValues(string(result)).Inc()
	return result
}

func (w *Workflow) invocationLogger() *log.Logger {
	return logex.Prefix("invocation-"+uuid.New().String(), w.logger)
}
