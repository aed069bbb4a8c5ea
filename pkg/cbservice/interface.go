// The external backup-execution service, as seen by the orchestrator
package cbservice

import (
	"context"

	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
)

type OperationStatus struct {
	Status string
	Error  *cbtypes.ErrorDetail // nil if the service attached none
}

// scoped to one project. implementations must be safe for concurrent use.
type BackupService interface {
	// starts a backup job. returns the service's operation name, which can be
	// empty if the service did not report one.
	InsertBackupRun(ctx context.Context, instanceId string, description string) (string, error)
	GetOperation(ctx context.Context, operationName string) (*OperationStatus, error)
	ProjectId() string
}
