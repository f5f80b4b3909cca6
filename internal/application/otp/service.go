package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-otp-service/internal/domain"
	"github.com/go-otp-service/internal/pkg/clock"
	"github.com/go-otp-service/internal/pkg/code"
	"github.com/go-otp-service/internal/pkg/id"
	"github.com/go-otp-service/internal/pkg/validate"
	"github.com/sethvargo/go-retry"
)

type IssueRequest struct {
	UserID    string         `json:"user_id" validate:"required"`
	Method    domain.Channel `json:"method" validate:"required,otp_channel"`
	Recipient string         `json:"recipient" validate:"required"`
}

type VerifyRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	OTPCode string `json:"otp_code" validate:"required"`
}

// Outcome is the business result of a verification. System failures are
// reported as errors instead.
type Outcome int

const (
	OutcomeNotFound Outcome = iota + 1
	OutcomeInvalid
	OutcomeExhausted
	OutcomeExpired
	OutcomeVerified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeExpired:
		return "expired"
	case OutcomeVerified:
		return "verified"
	}
	return "unknown"
}

// Store persists OTP records keyed by (user ID, creation time).
type Store interface {
	Put(ctx context.Context, rec *domain.OtpRecord) error
	QueryLatest(ctx context.Context, userID string) (*domain.OtpRecord, error)
	UpdateAttempts(ctx context.Context, userID string, createdAt time.Time, expected, newValue int) error
	// Consume removes the record if it still exists; ErrNotFound when another
	// caller already removed it.
	Consume(ctx context.Context, userID string, createdAt time.Time) error
}

// Sealer envelope-encrypts codes.
type Sealer interface {
	Seal(ctx context.Context, code string) (string, error)
	Unseal(ctx context.Context, sealed string) (string, error)
}

// Dispatcher delivers a message over a channel.
type Dispatcher interface {
	Send(ctx context.Context, channel domain.Channel, recipient, subject, message string) error
}

type Service interface {
	Issue(ctx context.Context, req IssueRequest) error
	Verify(ctx context.Context, req VerifyRequest) (Outcome, error)
}

// ServiceDeps holds the collaborators of the OTP service.
type ServiceDeps struct {
	Store      Store
	Sealer     Sealer
	Dispatcher Dispatcher
	Generator  code.Generator
	Clock      clock.Clocker
	Policy     domain.Policy
	Logger     *slog.Logger
}

type service struct {
	store      Store
	sealer     Sealer
	dispatcher Dispatcher
	generator  code.Generator
	clock      clock.Clocker
	policy     domain.Policy
	log        *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:      deps.Store,
		sealer:     deps.Sealer,
		dispatcher: deps.Dispatcher,
		generator:  deps.Generator,
		clock:      deps.Clock,
		policy:     deps.Policy,
		log:        deps.Logger,
	}
	if s.generator == nil {
		s.generator = code.NewRandom()
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.policy.RetryBackoff <= 0 {
		s.policy.RetryBackoff = domain.DefaultPolicy().RetryBackoff
	}
	return s
}

func (s *service) Issue(ctx context.Context, req IssueRequest) error {
	if err := validate.Struct(&req); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
	}
	if err := validate.Recipient(req.Method, req.Recipient); err != nil {
		return err
	}

	otp, err := s.generator.Generate()
	if err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(ctx, otp)
	if err != nil {
		return fmt.Errorf("seal otp: %w: %w", domain.ErrEncryption, err)
	}

	now := s.clock.Now().UTC()
	expires := now.Add(s.policy.ExpiryWindow)
	rec := &domain.OtpRecord{
		UserID:            req.UserID,
		CreatedAt:         now,
		RecordID:          id.New(),
		SealedCode:        sealed,
		ExpiresAt:         expires,
		TTL:               ttlEpoch(expires.Add(s.policy.TTLGrace)),
		AttemptsRemaining: s.policy.MaxAttempts,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("store otp: %w: %w", domain.ErrStore, err)
	}

	if err := s.dispatcher.Send(ctx, req.Method, req.Recipient, s.policy.EmailSubject, "Your OTP is: "+otp); err != nil {
		// The stored record is kept; a re-issue produces a newer record that verification prefers.
		s.log.Warn("otp delivery failed", "user_id", req.UserID, "record_id", rec.RecordID, "channel", req.Method, "err", err)
		if errors.Is(err, domain.ErrInvalidChannel) {
			return err
		}
		return fmt.Errorf("deliver otp: %w: %w", domain.ErrDelivery, err)
	}

	s.log.Info("otp issued", "user_id", req.UserID, "record_id", rec.RecordID, "channel", req.Method, "expires_at", expires)
	return nil
}

func (s *service) Verify(ctx context.Context, req VerifyRequest) (Outcome, error) {
	if err := validate.Struct(&req); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
	}

	// A lost conditional decrement re-runs the whole read/compare step once.
	var outcome Outcome
	backoff := retry.WithMaxRetries(1, retry.NewConstant(s.policy.RetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		o, err := s.attempt(ctx, req.UserID, req.OTPCode)
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.log.Debug("otp attempt decrement conflicted", "user_id", req.UserID)
			return retry.RetryableError(err)
		}
		outcome = o
		return err
	})
	if errors.Is(err, domain.ErrConcurrentModification) {
		s.log.Warn("otp verification contended", "user_id", req.UserID)
		return 0, fmt.Errorf("verify otp for %s: %w", req.UserID, domain.ErrContention)
	}
	if err != nil {
		return 0, err
	}

	s.log.Info("otp verification", "user_id", req.UserID, "outcome", outcome.String())
	return outcome, nil
}

// attempt runs one read/unseal/compare pass against the latest record.
func (s *service) attempt(ctx context.Context, userID, submitted string) (Outcome, error) {
	rec, err := s.store.QueryLatest(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return OutcomeNotFound, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load otp: %w: %w", domain.ErrStore, err)
	}

	if rec.AttemptsRemaining <= 0 {
		return s.consume(ctx, rec, OutcomeExhausted)
	}

	actual, err := s.sealer.Unseal(ctx, rec.SealedCode)
	if err != nil {
		return 0, fmt.Errorf("unseal otp: %w: %w", domain.ErrDecryption, err)
	}

	// Exact comparison: no trimming, no leading-zero normalisation.
	if subtle.ConstantTimeCompare([]byte(actual), []byte(submitted)) != 1 {
		return s.mismatch(ctx, rec)
	}

	// Expiry is only consulted once the code matches.
	outcome := OutcomeVerified
	if rec.Expired(s.clock.Now()) {
		outcome = OutcomeExpired
	}
	return s.consume(ctx, rec, outcome)
}

func (s *service) mismatch(ctx context.Context, rec *domain.OtpRecord) (Outcome, error) {
	remaining := max(rec.AttemptsRemaining-1, 0)
	if err := s.store.UpdateAttempts(ctx, rec.UserID, rec.CreatedAt, rec.AttemptsRemaining, remaining); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			return 0, err
		}
		return 0, fmt.Errorf("decrement attempts: %w: %w", domain.ErrStore, err)
	}
	if remaining > 0 {
		return OutcomeInvalid, nil
	}
	return s.consume(ctx, rec, OutcomeExhausted)
}

// consume removes rec and reports outcome only if this call removed it.
// A concurrent verifier that got there first leaves this one with not found.
func (s *service) consume(ctx context.Context, rec *domain.OtpRecord, outcome Outcome) (Outcome, error) {
	err := s.store.Consume(ctx, rec.UserID, rec.CreatedAt)
	switch {
	case err == nil:
		return outcome, nil
	case errors.Is(err, domain.ErrNotFound):
		s.log.Debug("otp already consumed", "user_id", rec.UserID, "record_id", rec.RecordID)
		return OutcomeNotFound, nil
	case errors.Is(err, domain.ErrStore):
		return 0, fmt.Errorf("consume otp %s: %w", rec.RecordID, err)
	default:
		return 0, fmt.Errorf("consume otp %s: %w: %w", rec.RecordID, domain.ErrStore, err)
	}
}

// ttlEpoch rounds up so the TTL hint never precedes t.
func ttlEpoch(t time.Time) int64 {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return sec
}
