package cbalert

import (
	"context"
	"fmt"

	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/function61/gokit/logex"
)

// PublishBestEffort sends the alert and reports whether it was delivered.
// failures (panics included) are logged as *cbtypes.NotificationError and
// never propagated.
func PublishBestEffort(
	ctx context.Context,
	publisher Publisher,
	msg cbtypes.AlertMessage,
	logl *logex.Leveled,
) (published bool) {
	// stays this until Destination() returned, so it is safe to use in recover
	destination := "<unknown destination>"

	defer func() {
		if recovered := recover(); recovered != nil {
			err := &cbtypes.NotificationError{
				Topic: destination,
				Err:   fmt.Errorf("panic: %v", recovered),
			}

			logl.Error.Printf("failed to publish alert: %v", err)
			published = false
		}
	}()

	if publisher == nil {
		destination = "<no publisher>"
	} else {
		destination = publisher.Destination()
	}

	if err := publisher.Publish(ctx, msg); err != nil {
		logl.Error.Printf("failed to publish alert: %v", &cbtypes.NotificationError{
			Topic: destination,
			Err:   err,
		})
		return false
	}

	logl.Info.Printf(
		"published alert to %s: instance=%s error=%s timestamp=%f",
		destination,
		msg.InstanceId,
		msg.Error,
		msg.Timestamp)

	return true
}
