package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicero/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// WebhookDeduper remembers delivered webhook ids so retries are acknowledged once.
type WebhookDeduper struct {
	ddb   db.DynamoAPI
	table string
	ttl   time.Duration
}

func NewWebhookDeduper(ddb db.DynamoAPI, table string) *WebhookDeduper {
	// TTL: keep dedupe records for 7 days
	return &WebhookDeduper{ddb: ddb, table: table, ttl: 7 * 24 * time.Hour}
}

// Claim returns (isDuplicate, error). If duplicate, caller should exit early.
func (d *WebhookDeduper) Claim(ctx context.Context, webhookID, shopDomain, topic string) (bool, error) {
	if d == nil || strings.TrimSpace(d.table) == "" {
		// If not configured, don't block processing
		return false, nil
	}
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		return false, nil
	}

	now := time.Now().UTC()
	_, err := d.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: fmt.Sprintf("WH#%s", webhookID)},
			"Shop":      &types.AttributeValueMemberS{Value: shopDomain},
			"Topic":     &types.AttributeValueMemberS{Value: topic},
			"CreatedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			"ExpiresAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(d.ttl).Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		// Conditional check failed => already processed
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return true, nil
		}
		return false, err
	}

	return false, nil
}
