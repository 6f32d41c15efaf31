package sns

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/festhive-otp/internal/config"
)

// Publisher is the subset of the SNS client used by Sender.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender delivers verification codes by SMS through AWS SNS.
type Sender struct {
	client  Publisher
	appName string
	ttl     time.Duration
}

// NewSender builds an SNS client. When cfg.AWSEndpointURL is set (LocalStack),
// all traffic goes to that endpoint.
func NewSender(ctx context.Context, cfg *config.Config) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return NewSenderWithClient(sns.NewFromConfig(awsCfg, clientOpts...), cfg), nil
}

func NewSenderWithClient(client Publisher, cfg *config.Config) *Sender {
	return &Sender{client: client, appName: cfg.MailAppName, ttl: cfg.OTPTTL}
}

// Send texts code to the E.164 phone number in identity.
func (s *Sender) Send(ctx context.Context, identity, code string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(identity),
		Message:     aws.String(s.message(code)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

func (s *Sender) message(code string) string {
	return fmt.Sprintf("%s verification code: %s. It expires in %d minutes.",
		s.appName, code, int(s.ttl.Round(time.Minute)/time.Minute))
}
