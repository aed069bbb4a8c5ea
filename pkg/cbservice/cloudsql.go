package cbservice

import (
	"context"
	"fmt"

	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"google.golang.org/api/option"
	sqladmin "google.golang.org/api/sqladmin/v1beta4"
)

type cloudSqlService struct {
	sqlAdmin  *sqladmin.Service
	projectId string
}

// uses Application Default Credentials unless opts say otherwise
func NewCloudSqlService(ctx context.Context, projectId string, opts ...option.ClientOption) (BackupService, error) {
	sqlAdmin, err := sqladmin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sqladmin.NewService: %w", err)
	}

	return &cloudSqlService{sqlAdmin, projectId}, nil
}

func (c *cloudSqlService) ProjectId() string {
	return c.projectId
}

func (c *cloudSqlService) InsertBackupRun(ctx context.Context, instanceId string, description string) (string, error) {
	operation, err := c.sqlAdmin.BackupRuns.Insert(c.projectId, instanceId, &sqladmin.BackupRun{
		Description: description,
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	return operation.Name, nil
}

func (c *cloudSqlService) GetOperation(ctx context.Context, operationName string) (*OperationStatus, error) {
	operation, err := c.sqlAdmin.Operations.Get(c.projectId, operationName).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	return &OperationStatus{
		Status: operation.Status,
		Error:  errorDetailFromOperation(operation.Error),
	}, nil
}

func errorDetailFromOperation(opErrors *sqladmin.OperationErrors) *cbtypes.ErrorDetail {
	if opErrors == nil {
		return nil
	}

	detail := &cbtypes.ErrorDetail{
		Kind: opErrors.Kind,
	}

	for _, opError := range opErrors.Errors {
		if opError == nil {
			continue
		}

		detail.Errors = append(detail.Errors, cbtypes.ErrorDetailItem{
			Code:    opError.Code,
			Message: opError.Message,
		})
	}

	return detail
}
