package cbconfig

import (
	"github.com/aws/aws-sdk-go/aws/endpoints"
)

func DefaultConfig(kitchenSink bool) *Config {
	conf := &Config{
		ProjectId: "my-gcp-project",
		Alert: AlertConfig{
			Channel: AlertChannelPubSub,
			Topic:   "backup-alerts",
		},
		ListenAddr:  DefaultListenAddr,
		BackoffUnit: Duration{DefaultBackoffUnit},
	}

	if kitchenSink {
		conf.Alert = AlertConfig{
			Channel: AlertChannelSns,
			Topic:   "arn:aws:sns:us-east-1:123456789012:backup-alerts",
			Sns: &AlertSnsConfig{
				Region:          endpoints.UsEast1RegionID,
				AccessKeyId:     "AKIAUZHTE3U35WCD5...",
				AccessKeySecret: "wXQJhB...",
			},
		}
	}

	return conf
}
