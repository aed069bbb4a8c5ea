// Scriptable in-memory BackupService for tests
package cbservicetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/function61/cloudsqlbackup/pkg/cbservice"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
)

type InsertResult struct {
	OperationName string
	Err           error
}

type StatusResult struct {
	Status string
	Error  *cbtypes.ErrorDetail
	Err    error
}

type InsertCall struct {
	InstanceId  string
	Description string
}

// Results are consumed in order and the last one repeats. with no scripted
// results inserts return "op-<n>" and every operation is "DONE".
type Fake struct {
	InsertResults []InsertResult
	StatusResults []StatusResult
	OnInsert      func() // called before each insert returns

	mu      sync.Mutex
	inserts []InsertCall
	gets    []string
}

var _ cbservice.BackupService = (*Fake)(nil)

func (f *Fake) ProjectId() string {
	return "test-project"
}

func (f *Fake) InsertBackupRun(ctx context.Context, instanceId string, description string) (string, error) {
	f.mu.Lock()
	f.inserts = append(f.inserts, InsertCall{instanceId, description})
	n := len(f.inserts)
	onInsert := f.OnInsert
	f.mu.Unlock()

	if onInsert != nil {
		onInsert()
	}

	if len(f.InsertResults) == 0 {
		return fmt.Sprintf("op-%d", n), nil
	}

	res := f.InsertResults[min(n, len(f.InsertResults))-1]
	return res.OperationName, res.Err
}

func (f *Fake) GetOperation(ctx context.Context, operationName string) (*cbservice.OperationStatus, error) {
	f.mu.Lock()
	f.gets = append(f.gets, operationName)
	n := len(f.gets)
	f.mu.Unlock()

	if len(f.StatusResults) == 0 {
		return &cbservice.OperationStatus{Status: cbtypes.StatusDone}, nil
	}

	res := f.StatusResults[min(n, len(f.StatusResults))-1]
	if res.Err != nil {
		return nil, res.Err
	}

	return &cbservice.OperationStatus{Status: res.Status, Error: res.Error}, nil
}

func (f *Fake) Inserts() []InsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]InsertCall{}, f.inserts...)
}

// operation names passed to GetOperation, in call order
func (f *Fake) Gets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string{}, f.gets...)
}
