package domain

import "time"

// Channel is the closed set of delivery channels.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelEmail:
		return true
	}
	return false
}

// OtpRecord is a sealed one-time passcode awaiting verification.
// PK: user_id, SK: creation_timestamp.
type OtpRecord struct {
	UserID            string
	CreatedAt         time.Time
	RecordID          string
	SealedCode        string
	ExpiresAt         time.Time
	TTL               int64 // Unix seconds, never earlier than ExpiresAt
	AttemptsRemaining int
}

// Expired reports whether the record is past its expiration at now.
func (r *OtpRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Policy controls record lifetime and attempt budget.
type Policy struct {
	MaxAttempts  int
	ExpiryWindow time.Duration
	TTLGrace     time.Duration
	RetryBackoff time.Duration
	EmailSubject string
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		ExpiryWindow: 10 * time.Minute,
		RetryBackoff: 25 * time.Millisecond,
		EmailSubject: "Your OTP Code",
	}
}
