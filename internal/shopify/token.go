package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicero/internal/apperr"
	"voicero/internal/db"
	"voicero/internal/security"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Integration mirrors the DynamoDB record written by the OAuth install.
// PK = SHOP#<shopDomain>
type Integration struct {
	PK                 string `dynamodbav:"PK"`
	Shop               string `dynamodbav:"Shop"`
	AccessTokenEnc     string `dynamodbav:"AccessTokenEnc"`
	Scope              string `dynamodbav:"Scope"`
	CreatedAt          string `dynamodbav:"CreatedAt"`
	LastEventAt        string `dynamodbav:"LastEventAt,omitempty"`
	LastEventTopic     string `dynamodbav:"LastEventTopic,omitempty"`
	LastEventWebhookId string `dynamodbav:"LastEventWebhookId,omitempty"`
}

// IntegrationStore keeps each shop's offline access token, sealed.
type IntegrationStore struct {
	ddb    db.DynamoAPI
	table  string
	sealer *security.Sealer
}

func NewIntegrationStore(ddb db.DynamoAPI, table string, sealer *security.Sealer) *IntegrationStore {
	return &IntegrationStore{ddb: ddb, table: table, sealer: sealer}
}

func integrationPK(shopDomain string) string {
	return fmt.Sprintf("SHOP#%s", strings.ToLower(strings.TrimSpace(shopDomain)))
}

func (s *IntegrationStore) Save(ctx context.Context, shopDomain, accessToken, scope string) error {
	if err := db.RequireTable(s.table, "INTEGRATIONS_TABLE"); err != nil {
		return err
	}
	enc, err := s.sealer.Seal(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	item, err := attributevalue.MarshalMap(Integration{
		PK:             integrationPK(shopDomain),
		Shop:           strings.ToLower(strings.TrimSpace(shopDomain)),
		AccessTokenEnc: enc,
		Scope:          scope,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal integration: %w", err)
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return err
}

// Load returns the plain access token. A shop without a record is unauthorized:
// the app proxy has no admin session for it.
func (s *IntegrationStore) Load(ctx context.Context, shopDomain string) (string, *Integration, error) {
	if strings.TrimSpace(shopDomain) == "" {
		return "", nil, &apperr.Unauthorized{Message: "missing shop"}
	}
	if err := db.RequireTable(s.table, "INTEGRATIONS_TABLE"); err != nil {
		return "", nil, err
	}

	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       db.Key(integrationPK(shopDomain)),
	})
	if err != nil {
		return "", nil, err
	}
	if out.Item == nil {
		return "", nil, &apperr.Unauthorized{Message: fmt.Sprintf("shop not connected: %s", shopDomain)}
	}

	var integ Integration
	if err := attributevalue.UnmarshalMap(out.Item, &integ); err != nil {
		return "", nil, err
	}

	enc := strings.TrimSpace(integ.AccessTokenEnc)
	if enc == "" {
		return "", nil, errors.New("no AccessTokenEnc on record")
	}

	token, err := s.sealer.Open(enc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	return token, &integ, nil
}

func (s *IntegrationStore) Delete(ctx context.Context, shopDomain string) error {
	if err := db.RequireTable(s.table, "INTEGRATIONS_TABLE"); err != nil {
		return err
	}
	_, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       db.Key(integrationPK(shopDomain)),
	})
	return err
}

// RecordWebhook stamps the "last event received" fields on the shop record.
// Shops without a record are left alone.
func (s *IntegrationStore) RecordWebhook(ctx context.Context, shopDomain, topic, webhookID string, at time.Time) error {
	if err := db.RequireTable(s.table, "INTEGRATIONS_TABLE"); err != nil {
		return err
	}

	// Only set webhook id if present (avoid storing empty string forever).
	updateExpr := "SET LastEventAt = :a, LastEventTopic = :t"
	exprVals := map[string]types.AttributeValue{
		":a": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
		":t": &types.AttributeValueMemberS{Value: topic},
	}
	if strings.TrimSpace(webhookID) != "" {
		updateExpr += ", LastEventWebhookId = :w"
		exprVals[":w"] = &types.AttributeValueMemberS{Value: webhookID}
	}

	_, err := s.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       db.Key(integrationPK(shopDomain)),
		UpdateExpression:          aws.String(updateExpr),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: exprVals,
	})
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return nil
	}
	return err
}

// ClientFor loads the shop's token and returns a GraphQL client bound to it.
func (s *IntegrationStore) ClientFor(ctx context.Context, shopDomain, apiVersion string, opts ...Option) (*Client, error) {
	token, _, err := s.Load(ctx, shopDomain)
	if err != nil {
		return nil, err
	}
	return NewClient(shopDomain, apiVersion, token, opts...), nil
}
