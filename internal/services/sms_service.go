package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	pkglogger "github.com/mincykel/backend/pkg/logger"
)

// Notifier sends a text message to a phone number. Delivery is
// best-effort and fire-and-forget: a failed send never rolls back the
// state change that triggered it.
type Notifier interface {
	Send(ctx context.Context, message, phoneNumber string) error
}

// SNSNotifier sends SMS messages through AWS SNS.
type SNSNotifier struct {
	client   *sns.Client
	senderID string
	logger   *slog.Logger
}

// NewSNSNotifier creates an SNS-backed notifier.
func NewSNSNotifier(region, senderID string, logger *slog.Logger) (*SNSNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SNSNotifier{
		client:   sns.NewFromConfig(cfg),
		senderID: senderID,
		logger:   logger,
	}, nil
}

func (s *SNSNotifier) Send(ctx context.Context, message, phoneNumber string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		Message:     aws.String(message),
		PhoneNumber: aws.String(phoneNumber),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			},
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		s.logger.Error("failed to send sms",
			slog.String("phone_number", pkglogger.SanitizedPhone(phoneNumber)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send sms: %w", err)
	}

	s.logger.Info("sms sent", slog.String("phone_number", pkglogger.SanitizedPhone(phoneNumber)))
	return nil
}

// LogNotifier writes messages to the log instead of sending them. Used
// outside production so flows can be exercised without sending real SMS.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (s *LogNotifier) Send(ctx context.Context, message, phoneNumber string) error {
	s.logger.Info("sms delivery disabled, logging instead",
		slog.String("phone_number", pkglogger.SanitizedPhone(phoneNumber)),
		slog.String("message", message))
	return nil
}
