package sns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/festhive-otp/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.PublishOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

var testCfg = &config.Config{MailAppName: "IES FESTHIVE", OTPTTL: 10 * time.Minute}

func TestSend_PublishesTransactionalSMS(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		attr := in.MessageAttributes["AWS.SNS.SMS.SMSType"]
		return aws.ToString(in.PhoneNumber) == "+34600111222" &&
			aws.ToString(in.Message) == "IES FESTHIVE verification code: 654321. It expires in 10 minutes." &&
			aws.ToString(attr.StringValue) == "Transactional"
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	s := NewSenderWithClient(pub, testCfg)
	require.NoError(t, s.Send(context.Background(), "+34600111222", "654321"))
	pub.AssertExpectations(t)
}

func TestSend_WrapsPublishError(t *testing.T) {
	boom := errors.New("throttled")
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, boom)

	s := NewSenderWithClient(pub, testCfg)
	err := s.Send(context.Background(), "+34600111222", "654321")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "sns publish")
}
