// Package stripe holds the process-wide Stripe credentials. Callers get a
// per-client payment intent API instead of mutating stripe.Key.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/ecomstore/storefront-backend/pkg/config"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

const (
	EnvTest = "test"
	EnvLive = "live"
)

var (
	ErrAPIKeyRequired = errors.New("stripe api key is required")
	ErrSecretRequired = errors.New("stripe webhook secret is required")
)

type Client struct {
	env           string
	signingSecret string
	intents       *paymentintent.Client
}

// NewClient validates that the secret key belongs to the configured
// environment. A test key in live mode, or the reverse, is rejected.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	if env != EnvTest && env != EnvLive {
		return nil, fmt.Errorf("stripe environment must be %q or %q, got %q", EnvTest, EnvLive, env)
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if keyEnv := environmentOf(key); keyEnv != env {
		return nil, fmt.Errorf("stripe %s environment requires an sk_%s or rk_%s key", env, env, env)
	}

	c := &Client{
		env:           env,
		signingSecret: secret,
		intents:       &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: key},
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe.configured")
	}
	return c, nil
}

// environmentOf derives test or live from a secret or restricted key prefix,
// returning "" for anything else.
func environmentOf(key string) string {
	for _, env := range []string{EnvTest, EnvLive} {
		if strings.HasPrefix(key, "sk_"+env+"_") || strings.HasPrefix(key, "rk_"+env+"_") {
			return env
		}
	}
	return ""
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.env
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// CreatePaymentIntent binds ctx to params and calls the intents API.
func (c *Client) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if c == nil || c.intents == nil {
		return nil, errors.New("stripe client not configured")
	}
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = ctx
	return c.intents.New(params)
}
