package dynamo

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/claytile-api/internal/config"
	"go.uber.org/zap"
)

// Bootstrap creates the DynamoDB tables if they don't already exist and turns
// on TTL for the expiring ones. Safe to call on every startup.
func Bootstrap(ctx context.Context, client *dynamodb.Client, tables config.DynamoTables) {
	createTable(ctx, client, hashTable(tables.VerificationCodes, fieldIdentifier))
	enableTTL(ctx, client, tables.VerificationCodes, fieldExpiresAt)

	createTable(ctx, client, hashTable(tables.Sessions, fieldToken))
	enableTTL(ctx, client, tables.Sessions, fieldExpiresAt)

	createTable(ctx, client, hashTable(tables.Files, fieldFileID))
}

func hashTable(name, hashKey string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
	}
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			zap.L().Warn("could not create table", zap.String("table", *input.TableName), zap.Error(err))
		}
		return
	}
	zap.L().Info("created table", zap.String("table", *input.TableName))
}

func enableTTL(ctx context.Context, client *dynamodb.Client, tableName, ttlAttr string) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	if err != nil {
		zap.L().Warn("could not enable TTL", zap.String("table", tableName), zap.Error(err))
	}
}
