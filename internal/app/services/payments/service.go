package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/app/metrics"
	"github.com/wishbank/wishbank/internal/app/services/ledger"
	"github.com/wishbank/wishbank/pkg/logger"
)

// DefaultEventType is the provider event that grants credits.
const DefaultEventType = "checkout.session.completed"

var (
	ErrUnknownBundle    = errors.New("unknown bundle")
	ErrUserRequired     = errors.New("user id is required")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrProvider         = errors.New("payment provider error")
)

// Outcome describes what a webhook delivery did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeMalformed Outcome = "malformed"
)

// Result is returned by HandleWebhook for every acknowledged event.
type Result struct {
	EventID   string
	EventType string
	Outcome   Outcome
	UserID    string
	Credits   int64
}

// Options configures the payments service.
type Options struct {
	// EventTypes lists the provider events that grant credits. Defaults to
	// DefaultEventType.
	EventTypes []string
}

// Service sells bundles and turns verified payment events into credits.
type Service struct {
	catalog    *Catalog
	provider   Provider
	ledger     *ledger.Service
	eventTypes map[string]struct{}
	log        *logger.Logger
	now        func() time.Time
}

// New constructs a payments service.
func New(catalog *Catalog, provider Provider, l *ledger.Service, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	if provider == nil {
		provider = DisabledProvider{}
	}
	types := make(map[string]struct{})
	for _, t := range opts.EventTypes {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = struct{}{}
		}
	}
	if len(types) == 0 {
		types[DefaultEventType] = struct{}{}
	}
	return &Service{
		catalog:    catalog,
		provider:   provider,
		ledger:     l,
		eventTypes: types,
		log:        log,
		now:        time.Now,
	}
}

// Bundles lists the purchasable bundles.
func (s *Service) Bundles() []payment.Bundle {
	return s.catalog.Bundles()
}

// Bundle looks up a single bundle.
func (s *Service) Bundle(id string) (payment.Bundle, error) {
	b, ok := s.catalog.Bundle(id)
	if !ok {
		return payment.Bundle{}, fmt.Errorf("%w: %q", ErrUnknownBundle, id)
	}
	return b, nil
}

// CreatePaymentIntent opens a provider intent for bundleID on behalf of
// userID and returns the client secret.
func (s *Service) CreatePaymentIntent(ctx context.Context, bundleID, userID string) (string, error) {
	b, err := s.Bundle(bundleID)
	if err != nil {
		return "", err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserRequired
	}

	secret, err := s.provider.CreatePaymentIntent(ctx, IntentRequest{
		Amount:   b.Amount,
		Currency: b.Currency,
		Metadata: map[string]string{
			"userId":   userID,
			"credits":  strconv.FormatInt(b.Credits, 10),
			"bundleId": b.ID,
		},
	})
	if err != nil {
		s.log.WithError(err).WithField("bundle_id", b.ID).Error("payment intent creation failed")
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}

	s.log.WithField("bundle_id", b.ID).WithField("user_id", userID).Info("payment intent created")
	return secret, nil
}

// HandleWebhook verifies and applies a provider event. Only a bad signature
// or a ledger failure produce an error; every other delivery is
// acknowledged with its Outcome so the provider stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (Result, error) {
	evt, err := s.provider.ConstructEvent(payload, signatureHeader)
	if err != nil {
		metrics.RecordPaymentEvent("", "rejected")
		s.log.WithError(err).Warn("webhook signature verification failed")
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	res := Result{EventID: evt.ID, EventType: evt.Type}
	if _, ok := s.eventTypes[evt.Type]; !ok {
		res.Outcome = OutcomeIgnored
		metrics.RecordPaymentEvent(evt.Type, string(res.Outcome))
		s.log.WithField("event_id", evt.ID).WithField("event_type", evt.Type).Debug("ignoring webhook event")
		return res, nil
	}

	userID, credits, err := s.grantFromMetadata(evt.Object)
	if err != nil {
		res.Outcome = OutcomeMalformed
		metrics.RecordPaymentEvent(evt.Type, string(res.Outcome))
		s.log.WithError(err).
			WithField("event_id", evt.ID).
			WithField("event_type", evt.Type).
			Error("webhook event carries unusable metadata")
		return res, nil
	}
	res.UserID, res.Credits = userID, credits

	_, applied, err := s.ledger.GrantForEvent(ctx, payment.Event{
		ID:         evt.ID,
		Type:       evt.Type,
		UserID:     userID,
		Credits:    credits,
		ReceivedAt: s.now().UTC(),
	})
	if err != nil {
		metrics.RecordPaymentEvent(evt.Type, "failed")
		return res, fmt.Errorf("apply webhook event: %w", err)
	}

	res.Outcome = OutcomeApplied
	if !applied {
		res.Outcome = OutcomeDuplicate
	}
	metrics.RecordPaymentEvent(evt.Type, string(res.Outcome))
	return res, nil
}

// grantFromMetadata reads userId and credits from data.object.metadata.
// credits is sent as a decimal string; a missing value falls back to the
// credits of the bundle named by bundleId.
func (s *Service) grantFromMetadata(object []byte) (string, int64, error) {
	meta := gjson.GetBytes(object, "metadata")
	if !meta.IsObject() {
		return "", 0, errors.New("metadata missing")
	}

	userID := strings.TrimSpace(meta.Get("userId").String())
	if userID == "" {
		return "", 0, errors.New("metadata.userId missing")
	}

	raw := meta.Get("credits")
	if !raw.Exists() {
		if b, ok := s.catalog.Bundle(meta.Get("bundleId").String()); ok {
			return userID, b.Credits, nil
		}
		return "", 0, errors.New("metadata.credits missing")
	}
	credits, err := strconv.ParseInt(strings.TrimSpace(raw.String()), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("metadata.credits %q: %w", raw.String(), err)
	}
	if credits <= 0 {
		return "", 0, fmt.Errorf("metadata.credits must be positive, got %d", credits)
	}
	return userID, credits, nil
}
