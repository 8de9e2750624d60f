package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// ReturnRequest is the acknowledgement handed to merchant staff for manual processing.
type ReturnRequest struct {
	Shop        string       `json:"shop"`
	OrderID     string       `json:"order_id"`
	OrderName   string       `json:"order_name"`
	Email       string       `json:"email"`
	Reason      ReturnReason `json:"reason"`
	Notes       string       `json:"notes,omitempty"`
	Items       []ReturnItem `json:"items"`
	Status      string       `json:"status"`
	RequestedAt time.Time    `json:"requested_at"`
}

type ReturnNotifier interface {
	NotifyReturn(ctx context.Context, r ReturnRequest) error
}

type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes pending-review returns to the merchant's topic.
type SNSNotifier struct {
	client   SNSPublisher
	topicArn string
}

func NewSNSNotifier(client SNSPublisher, topicArn string) *SNSNotifier {
	return &SNSNotifier{client: client, topicArn: topicArn}
}

func (n *SNSNotifier) NotifyReturn(ctx context.Context, r ReturnRequest) error {
	if n == nil || n.topicArn == "" {
		return nil
	}
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Return request %s (%s)", r.OrderName, r.Reason)
	// SNS subjects are capped at 100 chars
	if len(subject) > 100 {
		subject = subject[:100]
	}

	in := &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
	}
	if r.Shop != "" {
		in.MessageAttributes = map[string]types.MessageAttributeValue{
			"shop": {DataType: aws.String("String"), StringValue: aws.String(r.Shop)},
		}
	}

	_, err = n.client.Publish(ctx, in)
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
