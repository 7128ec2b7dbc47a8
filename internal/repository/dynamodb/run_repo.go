package dynamodb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"simflow/internal/domain"
	"simflow/internal/logger"
	"simflow/internal/repository"

	repositoryIface "simflow/internal/repository/iface"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// StatusIndex is the GSI on (status, submitted_at).
const StatusIndex = "status_index"

type runRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    logger.Logger
}

// NewRunRepository creates a DynamoDB run ledger on tableName.
func NewRunRepository(client *dynamodb.Client, tableName string, log logger.Logger) repositoryIface.RunRepository {
	return &runRepository{
		client:    client,
		tableName: tableName,
		logger:    log.With(logger.String("component", "run_repository")),
	}
}

func (r *runRepository) Create(ctx context.Context, rec *domain.RunRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		r.logger.Error("failed to marshal run", logger.Error(err))
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(run_id) OR #status <> :queued"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":queued": &types.AttributeValueMemberS{Value: string(domain.RecordQueued)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			r.logger.Warn("run already queued", logger.String("run_id", rec.RunID))
			return fmt.Errorf("%w: run_id=%s", repository.ErrAlreadyQueued, rec.RunID)
		}
		r.logger.Error("failed to create run", logger.Error(err))
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

func (r *runRepository) Put(ctx context.Context, rec *domain.RunRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		r.logger.Error("failed to put run", logger.String("run_id", rec.RunID), logger.Error(err))
		return fmt.Errorf("failed to put run: %w", err)
	}

	return nil
}

func (r *runRepository) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"run_id": &types.AttributeValueMemberS{Value: runID},
		},
	})
	if err != nil {
		r.logger.Error("failed to get run", logger.Error(err))
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if len(result.Item) == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, runID)
	}

	var rec domain.RunRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &rec, nil
}

func (r *runRepository) ListByStatus(ctx context.Context, status domain.RecordStatus, limit int, nextToken string) (*repositoryIface.RunPage, error) {
	queryInput := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(StatusIndex),
		KeyConditionExpression: aws.String("#status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	if nextToken != "" {
		exclusiveStartKey, err := decodeNextToken(nextToken)
		if err != nil {
			r.logger.Warn("failed to decode next token", logger.Error(err))
			return nil, fmt.Errorf("%w: %v", repository.ErrInvalidToken, err)
		}
		queryInput.ExclusiveStartKey = exclusiveStartKey
	}

	result, err := r.client.Query(ctx, queryInput)
	if err != nil {
		r.logger.Error("failed to query runs", logger.Error(err))
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	runs := make([]*domain.RunRecord, 0, len(result.Items))
	for _, item := range result.Items {
		var rec domain.RunRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			r.logger.Warn("failed to unmarshal run", logger.Error(err))
			continue
		}
		runs = append(runs, &rec)
	}

	var encodedNextToken string
	if result.LastEvaluatedKey != nil {
		encodedNextToken, err = encodeNextToken(result.LastEvaluatedKey)
		if err != nil {
			r.logger.Warn("failed to encode next token", logger.Error(err))
		}
	}

	return &repositoryIface.RunPage{
		Runs:      runs,
		NextToken: encodedNextToken,
	}, nil
}

// CreateTableInput describes the ledger table and its status index.
func CreateTableInput(tableName string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("run_id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("run_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("status"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("submitted_at"), AttributeType: types.ScalarAttributeTypeN},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(StatusIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("status"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("submitted_at"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}

// LastEvaluatedKey is flattened to "S:"/"N:"/"B:" prefixed strings, JSON
// encoded and base64'd.
func encodeNextToken(lastEvaluatedKey map[string]types.AttributeValue) (string, error) {
	if lastEvaluatedKey == nil {
		return "", nil
	}

	simpleMap := make(map[string]string)
	for key, value := range lastEvaluatedKey {
		switch v := value.(type) {
		case *types.AttributeValueMemberS:
			simpleMap[key] = "S:" + v.Value
		case *types.AttributeValueMemberN:
			simpleMap[key] = "N:" + v.Value
		case *types.AttributeValueMemberB:
			simpleMap[key] = "B:" + base64.StdEncoding.EncodeToString(v.Value)
		default:
			return "", fmt.Errorf("unsupported attribute type: %T", value)
		}
	}

	jsonData, err := json.Marshal(simpleMap)
	if err != nil {
		return "", fmt.Errorf("failed to json marshal: %w", err)
	}

	return base64.URLEncoding.EncodeToString(jsonData), nil
}

func decodeNextToken(nextToken string) (map[string]types.AttributeValue, error) {
	jsonData, err := base64.URLEncoding.DecodeString(nextToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decode next token: %w", err)
	}

	var simpleMap map[string]string
	if err := json.Unmarshal(jsonData, &simpleMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal next token: %w", err)
	}

	result := make(map[string]types.AttributeValue)
	for key, value := range simpleMap {
		if len(value) < 2 || value[1] != ':' {
			return nil, fmt.Errorf("invalid token format for key %s", key)
		}

		data := value[2:]
		switch value[:1] {
		case "S":
			result[key] = &types.AttributeValueMemberS{Value: data}
		case "N":
			result[key] = &types.AttributeValueMemberN{Value: data}
		case "B":
			decoded, err := base64.StdEncoding.DecodeString(data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode binary data for key %s: %w", key, err)
			}
			result[key] = &types.AttributeValueMemberB{Value: decoded}
		default:
			return nil, fmt.Errorf("unsupported attribute type prefix: %s", value[:1])
		}
	}

	return result, nil
}
