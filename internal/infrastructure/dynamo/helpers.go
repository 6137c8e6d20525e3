package dynamo

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func unixValue(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// deleteExpired scans table for rows whose expires_at is at or before now and
// deletes them. Each delete re-checks the expiry so a row refreshed between
// the scan and the delete survives. DynamoDB TTL does the same job eventually;
// this makes reclamation prompt and backend-independent.
func deleteExpired(ctx context.Context, client API, table, keyAttr string, now time.Time) (int, error) {
	names := map[string]string{"#k": keyAttr, "#e": fieldExpiresAt}
	values := map[string]types.AttributeValue{":now": unixValue(now)}

	p := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName:                 aws.String(table),
		FilterExpression:          aws.String("#e <= :now"),
		ProjectionExpression:      aws.String("#k"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	deleted := 0
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return deleted, err
		}
		for _, item := range out.Items {
			key, ok := item[keyAttr]
			if !ok {
				continue
			}
			_, err := client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 aws.String(table),
				Key:                       map[string]types.AttributeValue{keyAttr: key},
				ConditionExpression:       aws.String("#e <= :now"),
				ExpressionAttributeNames:  map[string]string{"#e": fieldExpiresAt},
				ExpressionAttributeValues: values,
			})
			if err != nil {
				if isConditionFailed(err) {
					continue
				}
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}
