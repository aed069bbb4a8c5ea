// Delivers failure alerts to an external notification channel
package cbalert

import (
	"context"
	"encoding/json"

	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
)

type Publisher interface {
	Publish(ctx context.Context, msg cbtypes.AlertMessage) error
	// topic name or ARN, for logging
	Destination() string
}

func serialize(msg cbtypes.AlertMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func alertSubject(msg cbtypes.AlertMessage) string {
	return "Backup failed: " + msg.InstanceId
}
