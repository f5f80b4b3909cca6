package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-otp-service/internal/application/delivery"
	"github.com/go-otp-service/internal/application/otp"
	"github.com/go-otp-service/internal/config"
	"github.com/go-otp-service/internal/domain"
	"github.com/go-otp-service/internal/infrastructure/kms"
	"github.com/go-otp-service/internal/infrastructure/localseal"
	"github.com/go-otp-service/internal/infrastructure/ses"
	"github.com/go-otp-service/internal/infrastructure/smtp"
)

func newSealer(cfg *config.Config, awsCfg aws.Config) (otp.Sealer, error) {
	switch cfg.Sealer {
	case config.SealerKMS:
		return kms.NewSealer(kms.NewClient(awsCfg), cfg.KMSKeyID), nil
	case config.SealerLocal:
		key, err := cfg.LocalSealKeyBytes()
		if err != nil {
			return nil, err
		}
		s, err := localseal.NewSealer(key)
		if err != nil {
			return nil, fmt.Errorf("local sealer: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown sealer %q", cfg.Sealer)
}

// newEmailSender returns a nil sender when email delivery is disabled.
func newEmailSender(cfg *config.Config, awsCfg aws.Config) (delivery.EmailSender, error) {
	switch cfg.EmailTransport {
	case config.EmailTransportSES:
		return ses.NewSender(ses.NewClient(awsCfg), cfg.SESFromEmail), nil
	case config.EmailTransportSMTP:
		m, err := smtp.NewMailer(cfg)
		if err != nil {
			return nil, fmt.Errorf("smtp mailer: %w", err)
		}
		return m, nil
	case config.EmailTransportNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown email transport %q", cfg.EmailTransport)
}

func policyFrom(p config.OTPPolicy) domain.Policy {
	return domain.Policy{
		MaxAttempts:  p.MaxAttempts,
		ExpiryWindow: p.ExpiryWindow,
		TTLGrace:     p.TTLGrace,
		RetryBackoff: p.RetryBackoff,
		EmailSubject: p.EmailSubject,
	}
}
