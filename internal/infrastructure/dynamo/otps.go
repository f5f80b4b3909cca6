package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-service/internal/domain"
)

// otpItem is the stored layout of a domain.OtpRecord.
type otpItem struct {
	UserID              string `dynamodbav:"user_id"`
	CreationTimestamp   string `dynamodbav:"creation_timestamp"`
	RecordID            string `dynamodbav:"record_id"`
	OtpCode             string `dynamodbav:"otp_code"`
	ExpirationTimestamp string `dynamodbav:"expiration_timestamp"`
	TTLTimestamp        int64  `dynamodbav:"ttl_timestamp"`
	Attempts            int    `dynamodbav:"attempts"`
}

func toItem(r *domain.OtpRecord) otpItem {
	return otpItem{
		UserID:              r.UserID,
		CreationTimestamp:   formatTimestamp(r.CreatedAt),
		RecordID:            r.RecordID,
		OtpCode:             r.SealedCode,
		ExpirationTimestamp: formatTimestamp(r.ExpiresAt),
		TTLTimestamp:        r.TTL,
		Attempts:            r.AttemptsRemaining,
	}
}

func (it otpItem) record() (*domain.OtpRecord, error) {
	created, err := parseTimestamp(it.CreationTimestamp)
	if err != nil {
		return nil, fmt.Errorf("parse creation_timestamp: %w", err)
	}
	expires, err := parseTimestamp(it.ExpirationTimestamp)
	if err != nil {
		return nil, fmt.Errorf("parse expiration_timestamp: %w", err)
	}
	return &domain.OtpRecord{
		UserID:            it.UserID,
		CreatedAt:         created,
		RecordID:          it.RecordID,
		SealedCode:        it.OtpCode,
		ExpiresAt:         expires,
		TTL:               it.TTLTimestamp,
		AttemptsRemaining: it.Attempts,
	}, nil
}

// OtpRepo stores sealed OTP records.
// PK: user_id, SK: creation_timestamp. ttl_timestamp drives DynamoDB TTL.
type OtpRepo struct {
	client    API
	tableName string
}

func NewOtpRepo(client API, tableName string) *OtpRepo {
	return &OtpRepo{client: client, tableName: tableName}
}

// Put inserts a new record. It never overwrites an existing key.
func (r *OtpRepo) Put(ctx context.Context, rec *domain.OtpRecord) error {
	item, err := attributevalue.MarshalMap(toItem(rec))
	if err != nil {
		return fmt.Errorf("marshal otp record: %w: %w", domain.ErrStore, err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldUserID},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("otp record already exists: %w", domain.ErrStore)
		}
		return fmt.Errorf("put otp record: %w: %w", domain.ErrStore, err)
	}
	return nil
}

// QueryLatest returns the record with the greatest creation_timestamp for userID.
func (r *OtpRepo) QueryLatest(ctx context.Context, userID string) (*domain.OtpRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#pk = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#pk": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query otp records: %w: %w", domain.ErrStore, err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	var it otpItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return nil, fmt.Errorf("unmarshal otp record: %w: %w", domain.ErrStore, err)
	}
	rec, err := it.record()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return rec, nil
}

// UpdateAttempts sets attempts to newValue only if it still equals expected.
// A lost race, or a record deleted in the meantime, yields ErrConcurrentModification.
func (r *OtpRepo) UpdateAttempts(ctx context.Context, userID string, createdAt time.Time, expected, newValue int) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 otpKey(userID, createdAt),
		UpdateExpression:    aws.String("SET #a = :new"),
		ConditionExpression: aws.String("#a = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#a": fieldAttempts,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberN{Value: strconv.Itoa(newValue)},
			":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(expected)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("attempts changed since read: %w", domain.ErrConcurrentModification)
		}
		return fmt.Errorf("update otp attempts: %w: %w", domain.ErrStore, err)
	}
	return nil
}

// Consume removes a record only if it still exists, so exactly one caller
// consumes it. A record already gone yields ErrNotFound.
func (r *OtpRepo) Consume(ctx context.Context, userID string, createdAt time.Time) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 otpKey(userID, createdAt),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": fieldUserID,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("otp record already consumed: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("consume otp record: %w: %w", domain.ErrStore, err)
	}
	return nil
}
