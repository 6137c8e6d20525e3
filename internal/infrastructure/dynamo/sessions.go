package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/claytile-api/internal/domain"
)

// SessionRepo provides typed DynamoDB operations for the sessions table.
type SessionRepo struct {
	client    API
	tableName string
}

func NewSessionRepo(client API, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// GetLive returns the session for token unless it is missing or expired at now.
func (r *SessionRepo) GetLive(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldToken, token),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.Session
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	if s.Expired(now) {
		return nil, fmt.Errorf("session expired: %w", domain.ErrNotFound)
	}
	return &s, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldToken, token),
	})
	return err
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return deleteExpired(ctx, r.client, r.tableName, fieldToken, now)
}
