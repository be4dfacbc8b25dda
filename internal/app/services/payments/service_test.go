package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbank/wishbank/internal/app/services/ledger"
	"github.com/wishbank/wishbank/internal/app/storage/memory"
	"github.com/wishbank/wishbank/pkg/logger"
)

type fakeProvider struct {
	intents   []IntentRequest
	intentErr error
	event     ProviderEvent
	eventErr  error
}

func (f *fakeProvider) CreatePaymentIntent(_ context.Context, req IntentRequest) (string, error) {
	if f.intentErr != nil {
		return "", f.intentErr
	}
	f.intents = append(f.intents, req)
	return "pi_test_secret", nil
}

func (f *fakeProvider) ConstructEvent([]byte, string) (ProviderEvent, error) {
	return f.event, f.eventErr
}

func newTestService(t *testing.T, provider Provider, opts Options) (*Service, *ledger.Service) {
	t.Helper()
	store := memory.New()
	catalog, err := NewCatalog(nil)
	require.NoError(t, err)
	l := ledger.New(store, store, logger.NewNop())
	return New(catalog, provider, l, opts, logger.NewNop()), l
}

func checkoutEvent(id, metadata string) ProviderEvent {
	return ProviderEvent{
		ID:     id,
		Type:   DefaultEventType,
		Object: []byte(`{"object":"checkout.session","metadata":` + metadata + `}`),
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider, Options{})

	secret, err := svc.CreatePaymentIntent(context.Background(), "standard", "u1")
	require.NoError(t, err)
	assert.Equal(t, "pi_test_secret", secret)

	require.Len(t, provider.intents, 1)
	req := provider.intents[0]
	assert.Equal(t, int64(999), req.Amount)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, map[string]string{"userId": "u1", "credits": "20", "bundleId": "standard"}, req.Metadata)
}

func TestCreatePaymentIntentErrors(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider, Options{})
	ctx := context.Background()

	_, err := svc.CreatePaymentIntent(ctx, "platinum", "u1")
	assert.ErrorIs(t, err, ErrUnknownBundle)

	_, err = svc.CreatePaymentIntent(ctx, "starter", "")
	assert.ErrorIs(t, err, ErrUserRequired)

	provider.intentErr = errors.New("card network down")
	_, err = svc.CreatePaymentIntent(ctx, "starter", "u1")
	assert.ErrorIs(t, err, ErrProvider)
	assert.Empty(t, provider.intents)
}

func TestHandleWebhookGrantsOnce(t *testing.T) {
	provider := &fakeProvider{event: checkoutEvent("evt_1", `{"userId":"u1","credits":"20"}`)}
	svc, l := newTestService(t, provider, Options{})
	ctx := context.Background()

	res, err := svc.HandleWebhook(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, int64(20), res.Credits)

	res, err = svc.HandleWebhook(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)

	u, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), u.Credits)
}

func TestHandleWebhookAddsToExistingBalance(t *testing.T) {
	provider := &fakeProvider{event: checkoutEvent("evt_2", `{"userId":"u1","credits":"20"}`)}
	svc, l := newTestService(t, provider, Options{})
	ctx := context.Background()
	_, err := l.Grant(ctx, "u1", 5)
	require.NoError(t, err)

	_, err = svc.HandleWebhook(ctx, nil, "sig")
	require.NoError(t, err)

	u, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), u.Credits)
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	provider := &fakeProvider{eventErr: errors.New("no valid signature")}
	svc, _ := newTestService(t, provider, Options{})

	_, err := svc.HandleWebhook(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestHandleWebhookIgnoresOtherTypes(t *testing.T) {
	evt := checkoutEvent("evt_3", `{"userId":"u1","credits":"20"}`)
	evt.Type = "payment_intent.created"
	svc, l := newTestService(t, &fakeProvider{event: evt}, Options{})

	res, err := svc.HandleWebhook(context.Background(), nil, "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	_, err = l.Balance(context.Background(), "u1")
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)
}

func TestHandleWebhookConfiguredTypes(t *testing.T) {
	evt := checkoutEvent("evt_4", `{"userId":"u1","credits":"10"}`)
	evt.Type = "payment_intent.succeeded"
	svc, _ := newTestService(t, &fakeProvider{event: evt}, Options{
		EventTypes: []string{" payment_intent.succeeded ", DefaultEventType},
	})

	res, err := svc.HandleWebhook(context.Background(), nil, "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
}

func TestHandleWebhookMalformedMetadata(t *testing.T) {
	cases := map[string]string{
		"no metadata":      `null`,
		"no user":          `{"credits":"20"}`,
		"bad credits":      `{"userId":"u1","credits":"twenty"}`,
		"negative credits": `{"userId":"u1","credits":"-4"}`,
		"no credits":       `{"userId":"u1"}`,
	}
	for name, meta := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _ := newTestService(t, &fakeProvider{event: checkoutEvent("evt_m", meta)}, Options{})
			res, err := svc.HandleWebhook(context.Background(), nil, "sig")
			require.NoError(t, err)
			assert.Equal(t, OutcomeMalformed, res.Outcome)
		})
	}
}

func TestHandleWebhookCreditsFromBundle(t *testing.T) {
	provider := &fakeProvider{event: checkoutEvent("evt_5", `{"userId":"u1","bundleId":"premium"}`)}
	svc, _ := newTestService(t, provider, Options{})

	res, err := svc.HandleWebhook(context.Background(), nil, "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, int64(40), res.Credits)
}

func TestDisabledProvider(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{})

	_, err := svc.CreatePaymentIntent(context.Background(), "starter", "u1")
	assert.ErrorIs(t, err, ErrProvider)

	_, err = svc.HandleWebhook(context.Background(), []byte("{}"), "sig")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
