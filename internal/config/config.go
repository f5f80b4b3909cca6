package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	SealerKMS   = "kms"
	SealerLocal = "local"

	EmailTransportSES  = "ses"
	EmailTransportSMTP = "smtp"
	// EmailTransportNone disables the email channel.
	EmailTransportNone = ""
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"3000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`

	DynamoTable     string `env:"DYNAMODB_TABLE" envDefault:"otp_main"`
	DynamoBootstrap bool   `env:"DYNAMODB_BOOTSTRAP" envDefault:"false"`

	Sealer       string `env:"SEALER" envDefault:"kms"`
	KMSKeyID     string `env:"KMS_KEY_ID"`
	LocalSealKey string `env:"LOCAL_SEAL_KEY"` // base64, 32 bytes

	SMSEnabled     bool   `env:"SMS_ENABLED" envDefault:"true"`
	EmailTransport string `env:"EMAIL_TRANSPORT" envDefault:"ses"`
	SESFromEmail   string `env:"SES_FROM_EMAIL"`
	SMTPHost       string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPUsername   string `env:"SMTP_USERNAME"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`

	OTP OTPPolicy `envPrefix:"OTP_"`

	AllowedOrigins  []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimitRPS    float64  `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst  int      `env:"RATE_LIMIT_BURST" envDefault:"10"`
	APIJWTPublicKey string   `env:"API_JWT_PUBLIC_KEY_PATH"`

	// Only enable behind a proxy that overwrites X-Forwarded-For.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

// OTPPolicy holds the issuance and verification policy knobs.
type OTPPolicy struct {
	MaxAttempts  int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	ExpiryWindow time.Duration `env:"EXPIRY_WINDOW" envDefault:"10m"`
	TTLGrace     time.Duration `env:"TTL_GRACE" envDefault:"0s"`
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"25ms"`
	EmailSubject string        `env:"EMAIL_SUBJECT" envDefault:"Your OTP Code"`
}

// Load reads all configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.OTP.MaxAttempts <= 0 {
		errs = append(errs, errors.New("OTP_MAX_ATTEMPTS must be positive"))
	}
	if c.OTP.ExpiryWindow <= 0 {
		errs = append(errs, errors.New("OTP_EXPIRY_WINDOW must be positive"))
	}
	if c.OTP.TTLGrace < 0 {
		errs = append(errs, errors.New("OTP_TTL_GRACE must not be negative"))
	}
	if c.OTP.RetryBackoff <= 0 {
		errs = append(errs, errors.New("OTP_RETRY_BACKOFF must be positive"))
	}
	switch c.Sealer {
	case SealerKMS:
		if c.KMSKeyID == "" {
			errs = append(errs, errors.New("KMS_KEY_ID is required when SEALER=kms"))
		}
	case SealerLocal:
		if _, err := c.LocalSealKeyBytes(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SEALER %q", c.Sealer))
	}
	switch c.EmailTransport {
	case EmailTransportSES:
		if c.SESFromEmail == "" {
			errs = append(errs, errors.New("SES_FROM_EMAIL is required when EMAIL_TRANSPORT=ses"))
		}
	case EmailTransportSMTP:
		if c.SESFromEmail == "" {
			errs = append(errs, errors.New("SES_FROM_EMAIL is required as the sender identity"))
		}
	case EmailTransportNone:
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_TRANSPORT %q", c.EmailTransport))
	}
	return errors.Join(errs...)
}

// LocalSealKeyBytes decodes LOCAL_SEAL_KEY into raw key material.
func (c *Config) LocalSealKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.LocalSealKey)
	if err != nil {
		return nil, fmt.Errorf("LOCAL_SEAL_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("LOCAL_SEAL_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
