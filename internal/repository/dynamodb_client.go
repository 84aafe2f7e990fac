package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"risksync/internal/domain"
	"risksync/internal/retry"
)

const (
	pkOwnerPrefix = "OWNER#"
	pkSheetPrefix = "SHEET#"
	skRowPrefix   = "ROW#"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Client wraps a DynamoDB table holding one risk record per sheet row.
// PutItem replaces the full item for an existing key, so a write for the same
// (spreadsheetId, rowIndex[, ownerId]) replaces the prior record instead of
// creating a duplicate, and re-running a previously succeeded write is a
// no-op in effect.
type Client struct {
	api       dynamodbAPI
	tableName string
	policy    retry.Policy
}

// New creates a new repository Client. Writes retry per the given policy.
func New(api dynamodbAPI, tableName string, policy retry.Policy) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, policy: policy}, nil
}

// recordPK builds the partition key. Records carrying an ownerId live in an
// owner namespace so two owners syncing the same spreadsheet cannot collide.
func recordPK(rec domain.RiskRecord) string {
	if rec.OwnerID != "" {
		return pkOwnerPrefix + rec.OwnerID + "#" + pkSheetPrefix + rec.SpreadsheetID
	}
	return pkSheetPrefix + rec.SpreadsheetID
}

func recordSK(rowIndex int) string {
	return skRowPrefix + strconv.Itoa(rowIndex)
}

// Ping verifies the table is reachable before a batch starts. DynamoDB has no
// ping verb; DescribeTable is cheap and also confirms the table exists.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	})
	if err != nil {
		return fmt.Errorf("repository: ping table %s: %w", c.tableName, err)
	}
	return nil
}

// Upsert writes one risk record, retrying storage-layer errors with backoff
// and surfacing the last error on exhaustion.
func (c *Client) Upsert(ctx context.Context, rec domain.RiskRecord) error {
	if rec.SpreadsheetID == "" || rec.RowIndex <= 0 {
		return errors.New("repository: Upsert: spreadsheetId and positive rowIndex are required")
	}

	item, err := recordItem(rec)
	if err != nil {
		return fmt.Errorf("repository: Upsert encode: %w", err)
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	}

	err = c.policy.Do(ctx, func(ctx context.Context) error {
		_, putErr := c.api.PutItem(ctx, in)
		return putErr
	})
	if err != nil {
		return fmt.Errorf("repository: Upsert row %d of %s: %w", rec.RowIndex, rec.SpreadsheetID, err)
	}
	return nil
}

// recordItem converts a RiskRecord to a DynamoDB attribute map. The open
// sourceData map and the prediction are stored as JSON string attributes.
func recordItem(rec domain.RiskRecord) (map[string]types.AttributeValue, error) {
	source, err := json.Marshal(rec.SourceData)
	if err != nil {
		return nil, fmt.Errorf("marshal sourceData: %w", err)
	}
	prediction, err := json.Marshal(rec.Prediction)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction: %w", err)
	}

	item := map[string]types.AttributeValue{
		"PK":                &types.AttributeValueMemberS{Value: recordPK(rec)},
		"SK":                &types.AttributeValueMemberS{Value: recordSK(rec.RowIndex)},
		"spreadsheetId":     &types.AttributeValueMemberS{Value: rec.SpreadsheetID},
		"rowIndex":          &types.AttributeValueMemberN{Value: strconv.Itoa(rec.RowIndex)},
		"projectIdentifier": &types.AttributeValueMemberS{Value: rec.ProjectIdentifier},
		"syncTimestamp":     &types.AttributeValueMemberS{Value: rec.SyncTimestamp},
		"sourceData":        &types.AttributeValueMemberS{Value: string(source)},
		"aiPrediction":      &types.AttributeValueMemberS{Value: string(prediction)},
		"lastProcessedAt":   &types.AttributeValueMemberS{Value: rec.LastProcessedAt},
	}
	if rec.OwnerID != "" {
		item["ownerId"] = &types.AttributeValueMemberS{Value: rec.OwnerID}
	}
	return item, nil
}
