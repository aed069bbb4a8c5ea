// Turns inbound trigger events into validated backup requests
package cbrequest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
)

// background function event: {"data": "<base64>"}
type event struct {
	Data    *string       `json:"data,omitempty"`
	Message *pushEnvelope `json:"message,omitempty"`
}

// Pub/Sub push subscriptions wrap the message: {"message": {"data": ..}, "subscription": ..}
type pushEnvelope struct {
	Data      *string `json:"data"`
	MessageId string  `json:"messageId"`
}

// Decode turns the "data" field of an event (base64-encoded UTF-8 JSON) into
// a BackupRequest. All failures are *cbtypes.ValidationError.
func Decode(data string) (cbtypes.BackupRequest, error) {
	raw, err := decodeBase64(data)
	if err != nil {
		return cbtypes.BackupRequest{}, &cbtypes.ValidationError{Reason: "data is not valid base64", Err: err}
	}

	if !utf8.Valid(raw) {
		return cbtypes.BackupRequest{}, &cbtypes.ValidationError{Reason: "data is not valid UTF-8"}
	}

	doc := map[string]interface{}{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return cbtypes.BackupRequest{}, &cbtypes.ValidationError{Reason: "data is not a JSON object", Err: err}
	}

	instanceId, isString := doc["instance_id"].(string)
	if !isString || instanceId == "" {
		return cbtypes.BackupRequest{}, &cbtypes.ValidationError{Reason: "missing 'instance_id' in message"}
	}

	return cbtypes.BackupRequest{InstanceId: instanceId}, nil
}

// DecodeEvent accepts either a background function event or a Pub/Sub push envelope
func DecodeEvent(body []byte) (cbtypes.BackupRequest, error) {
	ev := event{}
	if err := json.Unmarshal(bytes.TrimSpace(body), &ev); err != nil {
		return cbtypes.BackupRequest{}, &cbtypes.ValidationError{Reason: "event is not a JSON object", Err: err}
	}

	switch {
	case ev.Data != nil:
		return Decode(*ev.Data)
	case ev.Message != nil && ev.Message.Data != nil:
		return Decode(*ev.Message.Data)
	default:
		return cbtypes.BackupRequest{}, &cbtypes.ValidationError{Reason: "event has no 'data' field"}
	}
}

// Encode is the inverse of Decode
func Encode(req cbtypes.BackupRequest) string {
	asJson, err := json.Marshal(req)
	if err != nil { // cannot happen for a struct of strings
		panic(err)
	}

	return base64.StdEncoding.EncodeToString(asJson)
}

// EncodeEvent builds a background function event for a request
func EncodeEvent(req cbtypes.BackupRequest) []byte {
	data := Encode(req)

	asJson, err := json.Marshal(event{Data: &data})
	if err != nil {
		panic(err)
	}

	return asJson
}

// publishers differ on padding and alphabet, so accept all the common variants
func decodeBase64(data string) ([]byte, error) {
	if data == "" {
		return nil, errors.New("empty")
	}

	var firstErr error
	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		raw, err := encoding.DecodeString(data)
		if err == nil {
			return raw, nil
		}

		if firstErr == nil {
			firstErr = err
		}
	}

	return nil, firstErr
}
