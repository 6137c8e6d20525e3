package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/claytile-api/internal/domain"
)

// VerificationRepo manages passcodes. PK: identifier ("email:..." | "phone:..."),
// so a put is an upsert that replaces any outstanding code for the identifier.
type VerificationRepo struct {
	client    API
	tableName string
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

func (r *VerificationRepo) Upsert(ctx context.Context, v *domain.VerificationCode) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal verification code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// GetLive returns the code for identifier unless it is missing or expired at now.
func (r *VerificationRepo) GetLive(ctx context.Context, identifier string, now time.Time) (*domain.VerificationCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldIdentifier, identifier),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	var v domain.VerificationCode
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	if v.Expired(now) {
		return nil, fmt.Errorf("verification code expired: %w", domain.ErrNotFound)
	}
	return &v, nil
}

// Consume deletes the code only while it still carries codeHash, so two
// concurrent verifications of the same code cannot both succeed.
func (r *VerificationRepo) Consume(ctx context.Context, identifier, codeHash string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldIdentifier, identifier),
		ConditionExpression:      aws.String("#h = :h"),
		ExpressionAttributeNames: map[string]string{"#h": fieldCodeHash},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":h": &types.AttributeValueMemberS{Value: codeHash},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("verification code already used: %w", domain.ErrNotFound)
		}
		return err
	}
	return nil
}

func (r *VerificationRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return deleteExpired(ctx, r.client, r.tableName, fieldIdentifier, now)
}
