package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stripe/stripe-go/v84"
)

// ErrGatewayUnavailable reports that the provider could not create the intent.
// Nothing has been persisted when it is returned; callers may retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrIdempotencyKeyReused reports that the provider already holds a request with
// this Idempotency-Key but different parameters. Retrying cannot succeed.
var ErrIdempotencyKeyReused = errors.New("idempotency key reused with different parameters")

const (
	operationCreateIntent = "create_intent"
	operationLookupIntent = "lookup_intent"
)

// IntentRequest describes the charge to open with the provider.
type IntentRequest struct {
	Amount         int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// Intent is the provider-side handle returned to the caller.
type Intent struct {
	ProviderPaymentID string
	ClientSecret      string
}

// CreateIntent opens a PaymentIntent. Stripe's Idempotency-Key header carries the
// caller's key so retries here and on the client never open a second intent.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if c == nil || c.intents == nil {
		return nil, fmt.Errorf("%w: client not initialized", ErrGatewayUnavailable)
	}
	if req.Amount <= 0 {
		return nil, errors.New("intent amount must be positive")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, errors.New("intent idempotency key is required")
	}

	created, err := c.call(ctx, operationCreateIntent, func(callCtx context.Context) (*stripe.PaymentIntent, error) {
		return c.intents.Create(callCtx, buildIntentParams(req))
	})
	if err != nil {
		if isIdempotencyError(err) {
			return nil, fmt.Errorf("%w: %v", ErrIdempotencyKeyReused, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if created == nil || created.ID == "" {
		return nil, fmt.Errorf("%w: empty payment intent response", ErrGatewayUnavailable)
	}

	return &Intent{
		ProviderPaymentID: created.ID,
		ClientSecret:      created.ClientSecret,
	}, nil
}

// LookupIntent fetches the current state of an intent and reduces it to the
// same Event shape a webhook would deliver. States with no terminal meaning
// map to OutcomeIgnored.
func (c *Client) LookupIntent(ctx context.Context, providerPaymentID string) (*Event, error) {
	if c == nil || c.intents == nil {
		return nil, fmt.Errorf("%w: client not initialized", ErrGatewayUnavailable)
	}
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return nil, errors.New("provider payment id is required")
	}

	pi, err := c.call(ctx, operationLookupIntent, func(callCtx context.Context) (*stripe.PaymentIntent, error) {
		return c.intents.Retrieve(callCtx, providerPaymentID, &stripe.PaymentIntentRetrieveParams{})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if pi == nil || pi.ID == "" {
		return nil, fmt.Errorf("%w: empty payment intent response", ErrGatewayUnavailable)
	}
	return intentSnapshot(pi), nil
}

func intentSnapshot(pi *stripe.PaymentIntent) *Event {
	event := &Event{
		EventID:           fmt.Sprintf("lookup:%s:%s", pi.ID, pi.Status),
		ProviderPaymentID: pi.ID,
		Outcome:           OutcomeIgnored,
	}
	var eventType stripe.EventType
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		eventType = stripe.EventTypePaymentIntentSucceeded
	case stripe.PaymentIntentStatusProcessing:
		eventType = stripe.EventTypePaymentIntentProcessing
	case stripe.PaymentIntentStatusCanceled:
		eventType = stripe.EventTypePaymentIntentCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// a fresh intent also waits for a payment method; only a recorded error means it failed
		if pi.LastPaymentError == nil {
			return event
		}
		eventType = stripe.EventTypePaymentIntentPaymentFailed
	default:
		return event
	}
	event.Type = string(eventType)
	applyIntentOutcome(event, eventType, pi)
	return event
}

// call runs one provider request with a per-attempt timeout, retrying transient failures.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) (*stripe.PaymentIntent, error)) (*stripe.PaymentIntent, error) {
	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.NewExponential(c.retryBaseDelay))

	var result *stripe.PaymentIntent
	start := time.Now()
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()

		pi, err := fn(callCtx)
		if err == nil {
			result = pi
			return nil
		}
		if ctx.Err() == nil && isRetryable(err) {
			if c.logg != nil {
				logCtx := c.logg.WithFields(ctx, map[string]any{"operation": operation, "error": err.Error()})
				c.logg.Warn(logCtx, "stripe.request_retry")
			}
			return retry.RetryableError(err)
		}
		return err
	})
	c.observe(operation, err == nil, time.Since(start))
	return result, err
}

func buildIntentParams(req IntentRequest) *stripe.PaymentIntentCreateParams {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	params.AddMetadata("idempotency_key", req.IdempotencyKey)
	params.SetIdempotencyKey(req.IdempotencyKey)
	return params
}

// isRetryable treats network failures, timeouts, 429 and 5xx as transient.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return true
		}
		return stripeErr.HTTPStatusCode == 0 && stripeErr.Type == stripe.ErrorTypeAPI
	}
	return true
}

func isIdempotencyError(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeIdempotency
}

func (c *Client) observe(operation string, success bool, duration time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveGatewayCall(operation, success, duration)
}
