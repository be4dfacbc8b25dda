package payments

import (
	"context"
	"encoding/json"
	"errors"
)

// IntentRequest describes a payment intent to open with the provider.
type IntentRequest struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

// ProviderEvent is a verified provider event. Object holds the raw
// data.object payload.
type ProviderEvent struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// Provider is the payment processor the service talks to.
type Provider interface {
	// CreatePaymentIntent opens an intent and returns its client secret.
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (string, error)
	// ConstructEvent verifies the signature header over payload and decodes
	// the event.
	ConstructEvent(payload []byte, signatureHeader string) (ProviderEvent, error)
}

var errNotConfigured = errors.New("payment provider not configured")

// DisabledProvider rejects every call. Used when no provider credentials
// are configured so the rest of the service can still run.
type DisabledProvider struct{}

func (DisabledProvider) CreatePaymentIntent(context.Context, IntentRequest) (string, error) {
	return "", errNotConfigured
}

func (DisabledProvider) ConstructEvent([]byte, string) (ProviderEvent, error) {
	return ProviderEvent{}, errNotConfigured
}
