package cbalert

import (
	"context"
	"errors"
	"fmt"

	"github.com/function61/cloudsqlbackup/pkg/cbconfig"
	"google.golang.org/api/option"
)

// opts only apply to the Pub/Sub channel
func PublisherFromConfig(ctx context.Context, conf cbconfig.Config, opts ...option.ClientOption) (Publisher, error) {
	switch conf.Alert.Channel {
	case cbconfig.AlertChannelPubSub:
		return NewPubSubPublisher(ctx, conf.ProjectId, conf.Alert.Topic, opts...)
	case cbconfig.AlertChannelSns:
		if conf.Alert.Sns == nil {
			return nil, errors.New("SNS config not set")
		}

		client, err := SnsClient(*conf.Alert.Sns)
		if err != nil {
			return nil, err
		}

		return NewSnsPublisher(client, conf.Alert.Topic), nil
	case cbconfig.AlertChannelAlertManager:
		if conf.Alert.AlertManager == nil {
			return nil, errors.New("alertmanager config not set")
		}

		return NewAlertManagerPublisher(conf.Alert.AlertManager.BaseUrl), nil
	default:
		return nil, fmt.Errorf("unsupported alert channel: %s", conf.Alert.Channel)
	}
}
