package shopify

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"voicero/internal/apperr"
	"voicero/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const stateTTL = 10 * time.Minute

// StateStore holds OAuth state nonces between /auth and /auth/callback.
// PK = STATE#<nonce>
type StateStore struct {
	ddb   db.DynamoAPI
	table string
	now   func() time.Time
}

func NewStateStore(ddb db.DynamoAPI, table string) *StateStore {
	return &StateStore{ddb: ddb, table: table, now: time.Now}
}

func randomState(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue stores a fresh nonce bound to shop and returns it.
func (s *StateStore) Issue(ctx context.Context, shop string) (string, error) {
	if err := db.RequireTable(s.table, "OAUTH_STATE_TABLE"); err != nil {
		return "", err
	}
	state, err := randomState(24)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	exp := s.now().UTC().Add(stateTTL).Unix()
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"PK":             &types.AttributeValueMemberS{Value: "STATE#" + state},
			"Shop":           &types.AttributeValueMemberS{Value: shop},
			"ExpiresAtEpoch": &types.AttributeValueMemberN{Value: strconv.FormatInt(exp, 10)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return state, nil
}

var errBadState = errors.New("invalid or expired state")

// Consume checks state belongs to shop and deletes it so it cannot be replayed.
func (s *StateStore) Consume(ctx context.Context, state, shop string) error {
	if err := db.RequireTable(s.table, "OAUTH_STATE_TABLE"); err != nil {
		return err
	}
	key := db.Key("STATE#" + state)
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key,
	})
	if err != nil {
		return err
	}
	if out.Item == nil {
		return &apperr.Unauthorized{Message: errBadState.Error()}
	}

	// one-time state cleanup
	_, _ = s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key,
	})

	if !strings.EqualFold(db.AttrS(out.Item["Shop"]), shop) {
		return &apperr.Unauthorized{Message: "state mismatch"}
	}
	// DynamoDB TTL deletes lazily; enforce expiry here too.
	if n, ok := out.Item["ExpiresAtEpoch"].(*types.AttributeValueMemberN); ok {
		exp, _ := strconv.ParseInt(n.Value, 10, 64)
		if s.now().UTC().Unix() > exp {
			return &apperr.Unauthorized{Message: errBadState.Error()}
		}
	}
	return nil
}

// ValidShopDomain accepts only <name>.myshopify.com hosts.
func ValidShopDomain(shop string) bool {
	if !strings.HasSuffix(shop, ".myshopify.com") {
		return false
	}
	if strings.ContainsAny(shop, "/ :@?#") {
		return false
	}
	return len(shop) >= len("a.myshopify.com")
}
