package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig configures the Stripe provider.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// BaseURL overrides the API endpoint, e.g. to target a local twin.
	BaseURL string
	// MaxNetworkRetries defaults to the SDK value when nil.
	MaxNetworkRetries *int64
}

// StripeProvider implements Provider on stripe-go.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider builds a client for the given account.
func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	var backends *stripe.Backends
	if cfg.BaseURL != "" || cfg.MaxNetworkRetries != nil {
		backendCfg := &stripe.BackendConfig{
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
			MaxNetworkRetries: cfg.MaxNetworkRetries,
		}
		if cfg.BaseURL != "" {
			backendCfg.URL = stripe.String(cfg.BaseURL)
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
		}
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &StripeProvider{api: api, webhookSecret: cfg.WebhookSecret}
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req IntentRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}

func (p *StripeProvider) ConstructEvent(payload []byte, signatureHeader string) (ProviderEvent, error) {
	// Events are decoded with gjson downstream, so an API version drift
	// between the account and the SDK is tolerated.
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return ProviderEvent{}, err
	}
	out := ProviderEvent{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data != nil {
		out.Object = evt.Data.Raw
	}
	return out, nil
}
