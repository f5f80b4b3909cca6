package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-otp-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report fields by their JSON names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("otp_channel", func(fl validator.FieldLevel) bool {
		return domain.Channel(fl.Field().String()).Valid()
	})
}

// FieldError describes one failed rule.
type FieldError struct {
	Field string
	Tag   string
	Value string
}

// Errors is returned by Struct when one or more rules fail.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field, fe.Tag))
	}
	return strings.Join(msgs, "; ")
}

// Failed returns the names of fields that failed the given tag, in declaration order.
func (e Errors) Failed(tag string) []string {
	var out []string
	for _, fe := range e {
		if fe.Tag == tag {
			out = append(out, fe.Field)
		}
	}
	return out
}

// Struct validates the given struct using its validate tags.
// Returns Errors for rule failures, any other error as-is, or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		out := make(Errors, 0, len(ve))
		for _, fe := range ve {
			out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Value: fmt.Sprint(fe.Value())})
		}
		return out
	}
	return nil
}

// Recipient checks that recipient is addressable over channel:
// E.164 for SMS, RFC 5322 address for email.
func Recipient(channel domain.Channel, recipient string) error {
	var tag string
	switch channel {
	case domain.ChannelSMS:
		tag = "e164"
	case domain.ChannelEmail:
		tag = "email"
	default:
		return fmt.Errorf("channel %q: %w", channel, domain.ErrInvalidChannel)
	}
	if err := v.Var(recipient, tag); err != nil {
		return fmt.Errorf("recipient is not a valid %s address: %w", channel, domain.ErrBadRequest)
	}
	return nil
}
