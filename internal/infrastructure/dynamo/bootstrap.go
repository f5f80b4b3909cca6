package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Bootstrap creates the OTP table if it doesn't already exist and enables TTL on it.
// Safe to call on every startup.
func Bootstrap(ctx context.Context, client AdminAPI, tableName string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldUserID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldCreationTimestamp), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldUserID), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(fieldCreationTimestamp), KeyType: types.KeyTypeRange},
		},
	})
	if err != nil {
		// ResourceInUseException: the table already exists.
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			return fmt.Errorf("create table %s: %w", tableName, err)
		}
	} else {
		slog.Info("created table", "table", tableName)
	}

	_, err = client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(fieldTTL),
		},
	})
	if err != nil {
		// Re-enabling an already-enabled TTL is rejected; the sweep is a courtesy so keep going.
		slog.Warn("could not enable TTL", "table", tableName, "err", err)
	}
	return nil
}
