package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// ErrInvalidSignature is the single error for every webhook that fails verification.
// It never says which check failed.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// SignatureHeader is the request header carrying Stripe's signature.
const SignatureHeader = "Stripe-Signature"

// Outcome is the provider-neutral result a webhook reports for a charge.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
	OutcomeProcessing Outcome = "processing"
	OutcomeRefunded   Outcome = "refunded"
	OutcomeIgnored    Outcome = "ignored"
)

// Event is a verified webhook reduced to what the payment core needs.
type Event struct {
	EventID           string
	Type              string
	ProviderPaymentID string
	Outcome           Outcome
	ErrorCode         string
	ErrorMessage      string
}

// VerifyWebhook authenticates the raw body against the configured signing secret.
// Failures are logged as security events and counted.
func (c *Client) VerifyWebhook(ctx context.Context, payload []byte, signatureHeader string) (*Event, error) {
	event, reason := parseWebhook(payload, signatureHeader, c.signingSecret, c.tolerance)
	if reason == nil {
		return event, nil
	}

	if c.metrics != nil {
		c.metrics.IncSignatureFailure()
	}
	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"body_size": len(payload),
			"reason":    reason.Error(),
		})
		c.logg.Warn(logCtx, "webhook.signature_invalid")
	}
	return nil, ErrInvalidSignature
}

// VerifyWebhook checks a payload with an explicit secret and the default tolerance.
func VerifyWebhook(payload []byte, signatureHeader, secret string) (*Event, error) {
	event, reason := parseWebhook(payload, signatureHeader, secret, defaultTolerance)
	if reason != nil {
		return nil, ErrInvalidSignature
	}
	return event, nil
}

// parseWebhook returns the internal failure reason for logging only.
func parseWebhook(payload []byte, signatureHeader, secret string, tolerance time.Duration) (*Event, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errSecretRequired
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, webhook.ErrNotSigned
	}
	// HMAC-SHA256 over "timestamp.payload", compared with hmac.Equal.
	if err := webhook.ValidatePayloadWithTolerance(payload, signatureHeader, secret, tolerance); err != nil {
		return nil, err
	}

	var raw stripe.Event
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if raw.ID == "" {
		return nil, errors.New("event id missing")
	}

	event, err := mapEvent(&raw)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func mapEvent(raw *stripe.Event) (*Event, error) {
	event := &Event{
		EventID: raw.ID,
		Type:    string(raw.Type),
		Outcome: OutcomeIgnored,
	}
	if raw.Data == nil || len(raw.Data.Raw) == 0 {
		return event, nil
	}

	switch raw.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled,
		stripe.EventTypePaymentIntentProcessing:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		event.ProviderPaymentID = pi.ID
		applyIntentOutcome(event, raw.Type, &pi)
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(raw.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		if charge.PaymentIntent != nil {
			event.ProviderPaymentID = charge.PaymentIntent.ID
		}
		event.Outcome = OutcomeRefunded
	}

	if event.ProviderPaymentID == "" {
		event.Outcome = OutcomeIgnored
	}
	return event, nil
}

func applyIntentOutcome(event *Event, eventType stripe.EventType, pi *stripe.PaymentIntent) {
	switch eventType {
	case stripe.EventTypePaymentIntentSucceeded:
		event.Outcome = OutcomeSuccess
	case stripe.EventTypePaymentIntentProcessing:
		event.Outcome = OutcomeProcessing
	case stripe.EventTypePaymentIntentCanceled:
		event.Outcome = OutcomeFailure
		event.ErrorCode = "canceled"
		event.ErrorMessage = "payment intent canceled"
		if pi.CancellationReason != "" {
			event.ErrorMessage = fmt.Sprintf("payment intent canceled: %s", pi.CancellationReason)
		}
	case stripe.EventTypePaymentIntentPaymentFailed:
		event.Outcome = OutcomeFailure
		event.ErrorCode = "payment_failed"
		if pi.LastPaymentError != nil {
			if pi.LastPaymentError.Code != "" {
				event.ErrorCode = string(pi.LastPaymentError.Code)
			}
			event.ErrorMessage = pi.LastPaymentError.Msg
		}
	}
}
