package delivery

import (
	"context"
	"fmt"

	"github.com/go-otp-service/internal/domain"
)

// SMSSender sends a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// EmailSender sends a plain text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Dispatcher routes a message to the transport of its channel.
// It does not retry; a transport error is returned as ErrDelivery.
type Dispatcher struct {
	sms   SMSSender
	email EmailSender
}

// NewDispatcher builds a dispatcher. Either sender may be nil when that
// channel is not configured; sends on it then fail with ErrDelivery.
func NewDispatcher(sms SMSSender, email EmailSender) *Dispatcher {
	return &Dispatcher{sms: sms, email: email}
}

func (d *Dispatcher) Send(ctx context.Context, channel domain.Channel, recipient, subject, message string) error {
	var err error
	switch channel {
	case domain.ChannelSMS:
		if d.sms == nil {
			return fmt.Errorf("sms channel not configured: %w", domain.ErrDelivery)
		}
		err = d.sms.SendSMS(ctx, recipient, message)
	case domain.ChannelEmail:
		if d.email == nil {
			return fmt.Errorf("email channel not configured: %w", domain.ErrDelivery)
		}
		err = d.email.SendEmail(ctx, recipient, subject, message)
	default:
		return fmt.Errorf("channel %q: %w", channel, domain.ErrInvalidChannel)
	}
	if err != nil {
		return fmt.Errorf("send via %s: %w: %w", channel, domain.ErrDelivery, err)
	}
	return nil
}
