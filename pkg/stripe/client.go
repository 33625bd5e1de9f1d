package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/hireloop-backend/pkg/config"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultRequestTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 200 * time.Millisecond
	defaultTolerance      = 5 * time.Minute
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Recorder receives gateway telemetry.
type Recorder interface {
	IncSignatureFailure()
	ObserveGatewayCall(operation string, success bool, duration time.Duration)
}

type intentAPI interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	Retrieve(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

// Client is the boundary to Stripe: PaymentIntent calls and webhook verification.
type Client struct {
	intents        intentAPI
	environment    string
	signingSecret  string
	tolerance      time.Duration
	requestTimeout time.Duration
	maxAttempts    int
	retryBaseDelay time.Duration
	logg           *logger.Logger
	metrics        Recorder
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger, metrics Recorder) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	client := newClient(cfg, signingSecret, logg, metrics)

	// retries are driven by the gateway methods so the SDK must not retry on its own.
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: client.requestTimeout},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		backendCfg.URL = stripe.String(baseURL)
	}
	api := stripe.NewClient(apiKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backendCfg)))
	client.intents = api.V1PaymentIntents
	client.environment = env

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return client, nil
}

func newClient(cfg config.StripeConfig, signingSecret string, logg *logger.Logger, metrics Recorder) *Client {
	c := &Client{
		environment:    testEnv,
		signingSecret:  signingSecret,
		tolerance:      cfg.WebhookTolerance,
		requestTimeout: cfg.RequestTimeout,
		maxAttempts:    cfg.MaxAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		logg:           logg,
		metrics:        metrics,
	}
	if c.tolerance <= 0 {
		c.tolerance = defaultTolerance
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = defaultRequestTimeout
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.retryBaseDelay <= 0 {
		c.retryBaseDelay = defaultRetryBaseDelay
	}
	return c
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
