package cbalert

import (
	"context"

	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"github.com/function61/lambda-alertmanager/alertmanager/pkg/alertmanagerclient"
	"github.com/function61/lambda-alertmanager/alertmanager/pkg/alertmanagertypes"
)

type alertManagerPublisher struct {
	client  *alertmanagerclient.Client
	baseUrl string
}

// baseUrl is the root of a lambda-alertmanager deployment
func NewAlertManagerPublisher(baseUrl string) Publisher {
	return &alertManagerPublisher{alertmanagerclient.New(baseUrl), baseUrl}
}

func (a *alertManagerPublisher) Destination() string {
	return a.baseUrl
}

func (a *alertManagerPublisher) Publish(ctx context.Context, msg cbtypes.AlertMessage) error {
	payload, err := serialize(msg)
	if err != nil {
		return err
	}

	return a.client.Alert(ctx, alertmanagertypes.NewAlert(alertSubject(msg), string(payload)))
}
