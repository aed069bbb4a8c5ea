package cbtypes

import (
	"fmt"
	"strings"
	"time"
)

// the only status value the backup service uses to signal a finished backup
const StatusDone = "DONE"

// operation name used when the service does not tell us one
const UnknownOperation = "Unknown"

type BackupRequest struct {
	InstanceId string `json:"instance_id"`
}

type OperationHandle struct {
	Name       string
	InstanceId string
}

type BackupOutcome struct {
	Success     bool
	Status      string
	ErrorDetail *ErrorDetail // nil if the service attached no error
}

type ErrorDetailItem struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type ErrorDetail struct {
	Kind   string            `json:"kind,omitempty"`
	Errors []ErrorDetailItem `json:"errors,omitempty"`
}

func (e *ErrorDetail) String() string {
	if e == nil {
		return "None"
	}

	if len(e.Errors) == 0 {
		if e.Kind != "" {
			return e.Kind
		}

		return "None"
	}

	items := []string{}
	for _, item := range e.Errors {
		switch {
		case item.Code != "" && item.Message != "":
			items = append(items, fmt.Sprintf("%s: %s", item.Code, item.Message))
		case item.Code != "":
			items = append(items, item.Code)
		default:
			items = append(items, item.Message)
		}
	}

	return strings.Join(items, "; ")
}

type AlertMessage struct {
	InstanceId string  `json:"instance_id"`
	Error      string  `json:"error"`
	Timestamp  float64 `json:"timestamp"` // Unix seconds, with fraction
}

func NewAlertMessage(instanceId string, errorText string, now time.Time) AlertMessage {
	return AlertMessage{
		InstanceId: instanceId,
		Error:      errorText,
		Timestamp:  float64(now.UnixNano()) / float64(time.Second),
	}
}
