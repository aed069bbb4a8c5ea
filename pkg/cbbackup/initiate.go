package cbbackup

import (
	"context"
	"time"

	"github.com/function61/cloudsqlbackup/pkg/cbservice"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/function61/gokit/logex"
)

// "Jan 02, 2006, 03:04:05 PM UTC"
const descriptionTimeFormat = "Jan 02, 2006, 03:04:05 PM MST"

func BackupDescription(now time.Time) string {
	return "Automated backup - " + now.UTC().Format(descriptionTimeFormat)
}

// starts a backup job for the instance. service errors are logged here and
// returned as *cbtypes.BackupServiceError.
func Initiate(
	ctx context.Context,
	service cbservice.BackupService,
	instanceId string,
	now time.Time,
	logl *logex.Leveled,
) (cbtypes.OperationHandle, error) {
	operationName, err := service.InsertBackupRun(ctx, instanceId, BackupDescription(now))
	if err != nil {
		logl.Error.Printf("failed to initiate backup for %s: %v", instanceId, err)

		return cbtypes.OperationHandle{}, &cbtypes.BackupServiceError{
			Op:         "initiate",
			InstanceId: instanceId,
			Err:        err,
		}
	}

	if operationName == "" {
		operationName = cbtypes.UnknownOperation
	}

	logl.Info.Printf("backup initiated for instance %s; operation %s", instanceId, operationName)

	return cbtypes.OperationHandle{
		Name:       operationName,
		InstanceId: instanceId,
	}, nil
}
