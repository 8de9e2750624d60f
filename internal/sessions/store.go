package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"voicero/internal/apperr"
	"voicero/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// sessionTTL is refreshed on every write; idle sessions expire through DynamoDB TTL.
const sessionTTL = 90 * 24 * time.Hour

type Store struct {
	ddb   db.DynamoAPI
	table string
	now   func() time.Time
}

func NewStore(ddb db.DynamoAPI, table string) *Store {
	return &Store{ddb: ddb, table: table, now: time.Now}
}

func sessionPK(id string) string {
	return fmt.Sprintf("SESSION#%s", id)
}

func newThread(now time.Time) Thread {
	return Thread{ID: uuid.NewString(), Messages: []Message{}, CreatedAt: now}
}

// Create makes a session for shop. Creating an id that already exists for the same
// shop returns the stored session unchanged.
func (s *Store) Create(ctx context.Context, shop, id string) (*Session, error) {
	if err := db.RequireTable(s.table, "SESSIONS_TABLE"); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now().UTC()
	sess := &Session{
		PK:          sessionPK(id),
		ID:          id,
		Shop:        shop,
		Threads:     []Thread{newThread(now)},
		WindowState: StateClosed,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(sessionTTL).Unix(),
	}

	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return s.Get(ctx, shop, id)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session. Sessions belonging to another shop are reported as not found.
func (s *Store) Get(ctx context.Context, shop, id string) (*Session, error) {
	if err := db.RequireTable(s.table, "SESSIONS_TABLE"); err != nil {
		return nil, err
	}
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            db.Key(sessionPK(id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, &apperr.NotFound{Resource: "session", ID: id}
	}

	var sess Session
	if err := attributevalue.UnmarshalMap(out.Item, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if !strings.EqualFold(sess.Shop, shop) {
		return nil, &apperr.NotFound{Resource: "session", ID: id}
	}
	return &sess, nil
}

// save writes sess if nobody else has written since it was read at prev.
func (s *Store) save(ctx context.Context, sess *Session, prev int) error {
	now := s.now().UTC()
	sess.Version = prev + 1
	sess.UpdatedAt = now
	sess.ExpiresAt = now.Add(sessionTTL).Unix()

	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      aws.String("#v = :v"),
		ExpressionAttributeNames: map[string]string{"#v": "Version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.Itoa(prev)},
		},
	})
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return &apperr.Conflict{Message: fmt.Sprintf("session %s was modified concurrently", sess.ID)}
	}
	return err
}

// mutate reads, applies fn and writes back. expectVersion > 0 pins the version the
// caller last saw.
func (s *Store) mutate(ctx context.Context, shop, id string, expectVersion int, fn func(*Session) error) (*Session, error) {
	sess, err := s.Get(ctx, shop, id)
	if err != nil {
		return nil, err
	}
	if expectVersion > 0 && expectVersion != sess.Version {
		return nil, &apperr.Conflict{Message: fmt.Sprintf("session %s is at version %d, not %d", id, sess.Version, expectVersion)}
	}
	prev := sess.Version
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess, prev); err != nil {
		return nil, err
	}
	return sess, nil
}

// AppendMessage adds a message to the current thread. Appends do not conflict with
// each other, so a lost race is retried.
func (s *Store) AppendMessage(ctx context.Context, shop, id string, role Role, content, action string) (*Session, error) {
	var conflict *apperr.Conflict
	for attempt := 0; ; attempt++ {
		sess, err := s.mutate(ctx, shop, id, 0, func(sess *Session) error {
			if sess.CurrentThread() == nil {
				sess.Threads = append(sess.Threads, newThread(s.now().UTC()))
			}
			t := sess.CurrentThread()
			t.Messages = append(t.Messages, Message{
				ID:        uuid.NewString(),
				Role:      role,
				Content:   content,
				Action:    action,
				CreatedAt: s.now().UTC(),
			})
			if len(t.Messages) > maxMessages {
				t.Messages = t.Messages[len(t.Messages)-maxMessages:]
			}
			return nil
		})
		if errors.As(err, &conflict) && attempt < 2 {
			continue
		}
		return sess, err
	}
}

// UpdateWindowState moves the widget to state, enforcing the panel state machine.
func (s *Store) UpdateWindowState(ctx context.Context, shop, id string, state WindowState, welcomeShown *bool, expectVersion int) (*Session, error) {
	return s.mutate(ctx, shop, id, expectVersion, func(sess *Session) error {
		if !CanTransition(sess.WindowState, state) {
			return &apperr.Validation{Messages: []string{(&TransitionError{From: sess.WindowState, To: state}).Error()}}
		}
		sess.WindowState = state
		if welcomeShown != nil {
			sess.WelcomeShown = *welcomeShown
		}
		return nil
	})
}

// Clear starts a fresh thread and drops any pending return. Up to maxThreads
// threads are kept.
func (s *Store) Clear(ctx context.Context, shop, id string) (*Session, error) {
	return s.mutate(ctx, shop, id, 0, func(sess *Session) error {
		sess.Threads = append(sess.Threads, newThread(s.now().UTC()))
		if len(sess.Threads) > maxThreads {
			sess.Threads = sess.Threads[len(sess.Threads)-maxThreads:]
		}
		sess.PendingReturn = nil
		sess.WelcomeShown = false
		return nil
	})
}

// SetPendingReturn records (or with nil, clears) a return waiting for its reason.
func (s *Store) SetPendingReturn(ctx context.Context, shop, id string, p *PendingReturn) (*Session, error) {
	return s.mutate(ctx, shop, id, 0, func(sess *Session) error {
		if p != nil && p.CreatedAt.IsZero() {
			p.CreatedAt = s.now().UTC()
		}
		sess.PendingReturn = p
		return nil
	})
}
