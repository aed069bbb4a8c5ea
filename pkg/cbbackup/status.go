package cbbackup

import (
	"context"

	"github.com/function61/cloudsqlbackup/pkg/cbservice"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/function61/gokit/logex"
)

// reads the operation's status once. does not retry.
func CheckStatus(
	ctx context.Context,
	service cbservice.BackupService,
	handle cbtypes.OperationHandle,
	logl *logex.Leveled,
) (cbtypes.BackupOutcome, error) {
	status, err := service.GetOperation(ctx, handle.Name)
	if err != nil {
		logl.Error.Printf("error checking backup status of %s (operation %s): %v", handle.InstanceId, handle.Name, err)

		return cbtypes.BackupOutcome{}, &cbtypes.BackupServiceError{
			Op:            "check status",
			InstanceId:    handle.InstanceId,
			OperationName: handle.Name,
			Err:           err,
		}
	}

	logl.Debug.Printf("operation %s status: %s", handle.Name, status.Status)

	if status.Status == cbtypes.StatusDone {
		return cbtypes.BackupOutcome{Success: true, Status: status.Status}, nil
	}

	return cbtypes.BackupOutcome{
		Success:     false,
		Status:      status.Status,
		ErrorDetail: status.Error,
	}, nil
}
