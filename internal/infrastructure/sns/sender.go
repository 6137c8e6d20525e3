package sns

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/claytile-api/internal/config"
	"github.com/claytile-api/internal/infrastructure/awscfg"
)

// SMSSender sends SMS messages via AWS SNS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type sender struct {
	client *sns.Client
}

func NewSender(ctx context.Context, cfg *config.Config) (SMSSender, error) {
	awsCfg, err := awscfg.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &sender{client: sns.NewFromConfig(awsCfg, opts...)}, nil
}

func (s *sender) SendSMS(ctx context.Context, to, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	return err
}
