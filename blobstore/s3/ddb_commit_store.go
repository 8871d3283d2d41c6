package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentCommit is returned when another writer committed the
// same version first.
var ErrConcurrentCommit = errors.New("concurrent checkpoint commit detected")

// DDBClient is the subset of the DynamoDB API the commit store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitStore tracks the current checkpoint of a pool in DynamoDB.
// Checkpoint blobs themselves live in S3; S3 has no compare-and-swap,
// so the pointer to the latest blob goes through DynamoDB conditional
// writes instead. Multiple writers can then race a commit and exactly
// one wins.
//
// Table schema:
//   - Partition key: base_uri (string), the S3 bucket/prefix
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name blockpool-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	client    DDBClient
	tableName string
	baseURI   string
}

// NewCommitStore creates a commit store. baseURI identifies the pool,
// typically "s3://bucket/prefix".
func NewCommitStore(client DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		client:    client,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Latest returns the most recently committed version and checkpoint
// name. Version 0 with an empty name means nothing was committed yet.
func (s *CommitStore) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit log: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in commit log")
	}
	nameAttr, ok := item["checkpoint"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid checkpoint attribute in commit log")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse commit version: %w", err)
	}

	return version, nameAttr.Value, nil
}

// Commit atomically records checkpointName as the next version. Returns
// ErrConcurrentCommit if another writer claimed the version first; the
// caller should re-read Latest and decide whether to retry.
func (s *CommitStore) Commit(ctx context.Context, checkpointName string) (uint64, error) {
	currentVersion, _, err := s.Latest(ctx)
	if err != nil {
		return 0, err
	}

	newVersion := currentVersion + 1

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":   &types.AttributeValueMemberS{Value: s.baseURI},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(newVersion, 10)},
			"checkpoint": &types.AttributeValueMemberS{Value: checkpointName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentCommit
		}
		return 0, fmt.Errorf("commit version: %w", err)
	}

	return newVersion, nil
}
