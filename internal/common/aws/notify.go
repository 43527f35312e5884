package aws

import (
	"context"
	"errors"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of *sns.Client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SESAPI is the subset of *ses.Client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSClient struct {
	api SNSAPI
}

func NewSNSClient(ctx context.Context, region string) (*SNSClient, error) {
	cfg, err := LoadConfig(ctx, region, "", "")
	if err != nil {
		return nil, err
	}
	return &SNSClient{api: sns.NewFromConfig(cfg)}, nil
}

func NewSNSClientFromAPI(api SNSAPI) *SNSClient {
	return &SNSClient{api: api}
}

// PublishMessage publishes to topicARN and returns the message id. Each
// attribute is sent as a String message attribute for subscription filters.
func (s *SNSClient) PublishMessage(ctx context.Context, topicARN, subject, message string, attributes map[string]string) (string, error) {
	if topicARN == "" {
		return "", errors.New("sns topic arn is required")
	}

	input := &sns.PublishInput{
		TopicArn: awssdk.String(topicARN),
		Message:  awssdk.String(message),
	}
	if subject != "" {
		input.Subject = awssdk.String(truncate(subject, 100))
	}
	if len(attributes) > 0 {
		input.MessageAttributes = make(map[string]snstypes.MessageAttributeValue, len(attributes))
		for k, v := range attributes {
			if v == "" {
				continue
			}
			input.MessageAttributes[k] = snstypes.MessageAttributeValue{
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(v),
			}
		}
	}

	out, err := s.api.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sns publish failed: %w", err)
	}
	return awssdk.ToString(out.MessageId), nil
}

type SESClient struct {
	api SESAPI
}

func NewSESClient(ctx context.Context, region string) (*SESClient, error) {
	cfg, err := LoadConfig(ctx, region, "", "")
	if err != nil {
		return nil, err
	}
	return &SESClient{api: ses.NewFromConfig(cfg)}, nil
}

func NewSESClientFromAPI(api SESAPI) *SESClient {
	return &SESClient{api: api}
}

// SendTextEmail sends a plain-text email and returns the message id.
func (s *SESClient) SendTextEmail(ctx context.Context, from string, to []string, subject, body string) (string, error) {
	if from == "" {
		return "", errors.New("ses sender address is required")
	}
	if len(to) == 0 {
		return "", errors.New("at least one recipient is required")
	}

	out, err := s.api.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(from),
		Destination: &sestypes.Destination{ToAddresses: to},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject), Charset: awssdk.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(body), Charset: awssdk.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send failed: %w", err)
	}
	return awssdk.ToString(out.MessageId), nil
}

// SNS subjects are limited to 100 characters.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
