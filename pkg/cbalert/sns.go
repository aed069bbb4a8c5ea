package cbalert

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/function61/cloudsqlbackup/pkg/cbconfig"
	"github.com/function61/cloudsqlbackup/pkg/cbtypes"
)

type snsPublisher struct {
	sns      snsiface.SNSAPI
	topicArn string
}

func NewSnsPublisher(client snsiface.SNSAPI, topicArn string) Publisher {
	return &snsPublisher{client, topicArn}
}

// static credentials if given, otherwise the SDK's default credential chain
func SnsClient(conf cbconfig.AlertSnsConfig) (*sns.SNS, error) {
	awsSession, err := session.NewSession()
	if err != nil {
		return nil, err
	}

	awsConf := aws.NewConfig().WithRegion(conf.Region)

	if conf.AccessKeyId != "" {
		awsConf = awsConf.WithCredentials(credentials.NewStaticCredentials(
			conf.AccessKeyId,
			conf.AccessKeySecret,
			""))
	}

	return sns.New(awsSession, awsConf), nil
}

func (s *snsPublisher) Destination() string {
	return s.topicArn
}

func (s *snsPublisher) Publish(ctx context.Context, msg cbtypes.AlertMessage) error {
	payload, err := serialize(msg)
	if err != nil {
		return err
	}

	_, err = s.sns.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicArn),
		Subject:  aws.String(alertSubject(msg)),
		Message:  aws.String(string(payload)),
	})
	return err
}
