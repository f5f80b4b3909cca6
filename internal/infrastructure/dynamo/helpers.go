package dynamo

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// timestampLayout is fixed-width so lexical order of the sort key equals time order.
// time.RFC3339Nano trims trailing zeros and would sort "…:05Z" after "…:05.1Z".
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// compositeKey builds a DynamoDB primary key with two string attributes (PK + SK).
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

// otpKey builds the primary key of an OTP record.
func otpKey(userID string, createdAt time.Time) map[string]types.AttributeValue {
	return compositeKey(fieldUserID, userID, fieldCreationTimestamp, formatTimestamp(createdAt))
}
