package cbtypes

import (
	"fmt"
)

// inbound payload was malformed or incomplete. terminal: no retry, no alert.
type ValidationError struct {
	Reason string
	Err    error
}

func (v *ValidationError) Error() string {
	if v.Err != nil {
		return fmt.Sprintf("invalid backup request: %s: %v", v.Reason, v.Err)
	}

	return fmt.Sprintf("invalid backup request: %s", v.Reason)
}

func (v *ValidationError) Unwrap() error {
	return v.Err
}

// transport or service failure from the backup service. recoverable by
// retrying, fatal only after the retry limit is reached.
type BackupServiceError struct {
	Op            string // "initiate" | "check status"
	InstanceId    string
	OperationName string // empty for initiate
	Err           error
}

func (b *BackupServiceError) Error() string {
	if b.OperationName != "" {
		return fmt.Sprintf("%s %s (operation %s): %v", b.Op, b.InstanceId, b.OperationName, b.Err)
	}

	return fmt.Sprintf("%s %s: %v", b.Op, b.InstanceId, b.Err)
}

func (b *BackupServiceError) Unwrap() error {
	return b.Err
}

// alert could not be delivered. logged and swallowed, never escalated.
type NotificationError struct {
	Topic string
	Err   error
}

func (n *NotificationError) Error() string {
	return fmt.Sprintf("publish alert to %s: %v", n.Topic, n.Err)
}

func (n *NotificationError) Unwrap() error {
	return n.Err
}
