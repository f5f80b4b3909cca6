package dynamo

// DynamoDB attribute names used in key, condition and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID            = "user_id"
	fieldCreationTimestamp = "creation_timestamp"
	fieldAttempts          = "attempts"
	fieldTTL               = "ttl_timestamp"
)
