package cbalert

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
	"google.golang.org/api/option"
	pubsub "google.golang.org/api/pubsub/v1"
)

type pubSubPublisher struct {
	pubSub *pubsub.Service
	topic  string
}

// topic is either a full "projects/<project>/topics/<name>" path or a bare
// name within projectId
func NewPubSubPublisher(ctx context.Context, projectId string, topic string, opts ...option.ClientOption) (Publisher, error) {
	pubSub, err := pubsub.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewService: %w", err)
	}

	return &pubSubPublisher{pubSub, TopicPath(projectId, topic)}, nil
}

func (p *pubSubPublisher) Destination() string {
	return p.topic
}

func (p *pubSubPublisher) Publish(ctx context.Context, msg cbtypes.AlertMessage) error {
	payload, err := serialize(msg)
	if err != nil {
		return err
	}

	if _, err := p.pubSub.Projects.Topics.Publish(p.topic, &pubsub.PublishRequest{
		Messages: []*pubsub.PubsubMessage{
			{
				Data: base64.StdEncoding.EncodeToString(payload),
			},
		},
	}).Context(ctx).Do(); err != nil {
		return err
	}

	return nil
}

func TopicPath(projectId string, topic string) string {
	if strings.HasPrefix(topic, "projects/") {
		return topic
	}

	return fmt.Sprintf("projects/%s/topics/%s", projectId, topic)
}
