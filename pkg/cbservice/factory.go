package cbservice

import (
	"context"

	"github.com/function61/cloudsqlbackup/pkg/cbconfig"
	"google.golang.org/api/option"
)

func ServiceFromConfig(ctx context.Context, conf cbconfig.Config, opts ...option.ClientOption) (BackupService, error) {
	return NewCloudSqlService(ctx, conf.ProjectId, opts...)
}
