package cbbackup

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/function61/cloudsqlbackup/pkg/cbservice/cbservicetest"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/function61/gokit/logex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogl = logex.Levels(log.New(io.Discard, "", 0))

func TestBackupDescription(t *testing.T) {
	assert.Equal(
		t,
		"Automated backup - Mar 05, 2024, 03:04:05 PM UTC",
		BackupDescription(time.Date(2024, 3, 5, 15, 4, 5, 0, time.UTC)))

	helsinki := time.FixedZone("EET", 2*60*60)

	assert.Equal(
		t,
		"Automated backup - Dec 31, 2023, 10:00:00 PM UTC",
		BackupDescription(time.Date(2024, 1, 1, 0, 0, 0, 0, helsinki)))
}

func TestInitiate(t *testing.T) {
	svc := &cbservicetest.Fake{}

	handle, err := Initiate(
		context.Background(),
		svc,
		"db-prod-1",
		time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		discardLogl)
	require.NoError(t, err)

	assert.Equal(t, cbtypes.OperationHandle{Name: "op-1", InstanceId: "db-prod-1"}, handle)
	assert.Equal(t, []cbservicetest.InsertCall{
		{InstanceId: "db-prod-1", Description: "Automated backup - Mar 05, 2024, 09:00:00 AM UTC"},
	}, svc.Inserts())
}

func TestInitiateUnknownOperationName(t *testing.T) {
	svc := &cbservicetest.Fake{
		InsertResults: []cbservicetest.InsertResult{{OperationName: ""}},
	}

	handle, err := Initiate(context.Background(), svc, "db-prod-1", time.Now(), discardLogl)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", handle.Name)
}

func TestInitiateServiceError(t *testing.T) {
	cause := errors.New("connection refused")

	svc := &cbservicetest.Fake{
		InsertResults: []cbservicetest.InsertResult{{Err: cause}},
	}

	_, err := Initiate(context.Background(), svc, "db-prod-1", time.Now(), discardLogl)

	var serviceErr *cbtypes.BackupServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "initiate", serviceErr.Op)
	assert.Equal(t, "db-prod-1", serviceErr.InstanceId)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "initiate db-prod-1: connection refused", err.Error())
}

func TestCheckStatus(t *testing.T) {
	handle := cbtypes.OperationHandle{Name: "op-9", InstanceId: "db-prod-1"}

	outcome, err := CheckStatus(context.Background(), &cbservicetest.Fake{}, handle, discardLogl)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Nil(t, outcome.ErrorDetail)

	detail := &cbtypes.ErrorDetail{Errors: []cbtypes.ErrorDetailItem{{Code: "INTERNAL_ERROR", Message: "disk full"}}}

	for _, status := range []string{"PENDING", "RUNNING", "FAILED", "SQL_OPERATION_STATUS_UNSPECIFIED", "done"} {
		svc := &cbservicetest.Fake{
			StatusResults: []cbservicetest.StatusResult{{Status: status, Error: detail}},
		}

		outcome, err := CheckStatus(context.Background(), svc, handle, discardLogl)
		require.NoError(t, err)
		assert.False(t, outcome.Success, status)
		assert.Equal(t, status, outcome.Status)
		assert.Equal(t, detail, outcome.ErrorDetail)
		assert.Equal(t, []string{"op-9"}, svc.Gets())
	}
}

func TestCheckStatusServiceError(t *testing.T) {
	svc := &cbservicetest.Fake{
		StatusResults: []cbservicetest.StatusResult{{Err: errors.New("503 backend unavailable")}},
	}

	_, err := CheckStatus(
		context.Background(),
		svc,
		cbtypes.OperationHandle{Name: "op-9", InstanceId: "db-prod-1"},
		discardLogl)

	var serviceErr *cbtypes.BackupServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "check status", serviceErr.Op)
	assert.Equal(t, "op-9", serviceErr.OperationName)
}
