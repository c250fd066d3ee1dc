package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/takuya-f/kabu-recorder/pkg/models"
)

// Compile-time check to ensure DynamoStore implements RecordStore
var _ RecordStore = (*DynamoStore)(nil)

// DynamoStore persists records in a DynamoDB table keyed by
// (symbol, get_time).
type DynamoStore struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoStore(client *dynamodb.Client, table string) *DynamoStore {
	return &DynamoStore{
		client: client,
		table:  table,
	}
}

// NewDynamoClient initializes a DynamoDB client. A non-empty endpoint
// overrides the default resolution, which is how local tables are targeted.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(region),
	}
	if endpoint != "" {
		opts = append(opts, awscfg.WithBaseEndpoint(endpoint))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg), nil
}

// Put writes the record, overwriting any existing item with the same key.
func (s *DynamoStore) Put(ctx context.Context, rec *models.Record) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      rec.Item(),
	})
	if err != nil {
		return fmt.Errorf("put record %s/%s: %w", rec.Symbol, rec.Time, err)
	}
	return nil
}

// Query fetches one page of records for the symbol whose sort key begins
// with timePrefix, resuming from startKey when provided.
func (s *DynamoStore) Query(ctx context.Context, symbol, timePrefix string, startKey *Key) ([]models.Record, *Key, error) {
	keyExpr := expression.Key("symbol").Equal(expression.Value(symbol)).
		And(expression.Key("get_time").BeginsWith(timePrefix))

	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build key condition: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		KeyConditionExpression:    expr.KeyCondition(),
	}

	if startKey != nil {
		sk, err := attributevalue.MarshalMap(startKey)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal start key: %w", err)
		}
		input.ExclusiveStartKey = sk
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("query records for %s: %w", symbol, err)
	}

	records := make([]models.Record, 0, len(result.Items))
	for _, item := range result.Items {
		rec, err := models.RecordFromItem(item)
		if err != nil {
			return nil, nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, *rec)
	}

	var lastKey *Key
	if len(result.LastEvaluatedKey) > 0 {
		var k Key
		if err := attributevalue.UnmarshalMap(result.LastEvaluatedKey, &k); err != nil {
			return nil, nil, fmt.Errorf("unmarshal last evaluated key: %w", err)
		}
		lastKey = &k
	}

	return records, lastKey, nil
}
