package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/claytile-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}

func itemOf(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return item
}

func keyValue(key map[string]types.AttributeValue, name string) string {
	if s, ok := key[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// --- VerificationRepo ---

func TestVerificationRepo_Upsert_UsesIdentifierAsItemKey(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return *in.TableName == "codes" && keyValue(in.Item, "identifier") == "email:a@b.com"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	repo := NewVerificationRepo(api, "codes")
	err := repo.Upsert(context.Background(), &domain.VerificationCode{
		Identifier: "email:a@b.com",
		Email:      "a@b.com",
		CodeHash:   "h",
		ExpiresAt:  time.Now().Add(5 * time.Minute).Unix(),
	})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestVerificationRepo_GetLive_Missing(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := NewVerificationRepo(api, "codes").GetLive(context.Background(), "email:a@b.com", time.Now())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestVerificationRepo_GetLive_ExpiredIsNotFound(t *testing.T) {
	now := time.Now()
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{
		Item: itemOf(t, domain.VerificationCode{Identifier: "email:a@b.com", CodeHash: "h", ExpiresAt: now.Add(-time.Second).Unix()}),
	}, nil)

	_, err := NewVerificationRepo(api, "codes").GetLive(context.Background(), "email:a@b.com", now)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestVerificationRepo_GetLive_Live(t *testing.T) {
	now := time.Now()
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return keyValue(in.Key, "identifier") == "phone:+15125550123" && aws.ToBool(in.ConsistentRead)
	})).Return(&dynamodb.GetItemOutput{
		Item: itemOf(t, domain.VerificationCode{Identifier: "phone:+15125550123", Phone: "+15125550123", CodeHash: "h", ExpiresAt: now.Add(time.Minute).Unix()}),
	}, nil)

	v, err := NewVerificationRepo(api, "codes").GetLive(context.Background(), "phone:+15125550123", now)
	require.NoError(t, err)
	assert.Equal(t, "+15125550123", v.Phone)
	assert.Equal(t, "h", v.CodeHash)
}

func TestVerificationRepo_Consume_ConditionFailedIsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		h, _ := in.ExpressionAttributeValues[":h"].(*types.AttributeValueMemberS)
		return aws.ToString(in.ConditionExpression) == "#h = :h" && h != nil && h.Value == "hash-1"
	})).Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")})

	err := NewVerificationRepo(api, "codes").Consume(context.Background(), "email:a@b.com", "hash-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestVerificationRepo_Consume_OtherErrorPassesThrough(t *testing.T) {
	boom := errors.New("throttled")
	api := &mockAPI{}
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, boom)

	err := NewVerificationRepo(api, "codes").Consume(context.Background(), "email:a@b.com", "hash-1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

// --- SessionRepo ---

func TestSessionRepo_GetLive_Expired(t *testing.T) {
	now := time.Now()
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{
		Item: itemOf(t, domain.Session{Token: "tok", Identifier: "email:a@b.com", ExpiresAt: now.Add(-time.Hour).Unix()}),
	}, nil)

	_, err := NewSessionRepo(api, "sessions").GetLive(context.Background(), "tok", now)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSessionRepo_GetLive_Live(t *testing.T) {
	now := time.Now()
	api := &mockAPI{}
	// A session written by VerifyCode must be visible to the very next gate check.
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return keyValue(in.Key, "token") == "tok" && aws.ToBool(in.ConsistentRead)
	})).Return(&dynamodb.GetItemOutput{
		Item: itemOf(t, domain.Session{Token: "tok", Identifier: "email:a@b.com", ExpiresAt: now.Add(time.Hour).Unix()}),
	}, nil)

	s, err := NewSessionRepo(api, "sessions").GetLive(context.Background(), "tok", now)
	require.NoError(t, err)
	assert.Equal(t, "email:a@b.com", s.Identifier)
	api.AssertExpectations(t)
}

// --- deleteExpired ---

func TestDeleteExpired_SkipsRowsRefreshedSinceScan(t *testing.T) {
	api := &mockAPI{}
	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return aws.ToString(in.FilterExpression) == "#e <= :now" && in.ExpressionAttributeNames["#k"] == "token"
	})).Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
		strKey("token", "old"),
		strKey("token", "refreshed"),
	}}, nil).Once()
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return keyValue(in.Key, "token") == "old"
	})).Return(&dynamodb.DeleteItemOutput{}, nil)
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return keyValue(in.Key, "token") == "refreshed"
	})).Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("no")})

	n, err := NewSessionRepo(api, "sessions").DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	api.AssertExpectations(t)
}
