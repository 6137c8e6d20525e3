package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/claytile-api/internal/domain"
)

// FileRepo records completed uploads in the files table.
type FileRepo struct {
	client    API
	tableName string
}

func NewFileRepo(client API, tableName string) *FileRepo {
	return &FileRepo{client: client, tableName: tableName}
}

func (r *FileRepo) Put(ctx context.Context, f *domain.File) error {
	item, err := attributevalue.MarshalMap(f)
	if err != nil {
		return fmt.Errorf("marshal file: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}
