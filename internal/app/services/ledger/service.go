package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/app/domain/user"
	"github.com/wishbank/wishbank/internal/app/metrics"
	"github.com/wishbank/wishbank/internal/app/storage"
	"github.com/wishbank/wishbank/pkg/logger"
)

var (
	// ErrInsufficientCredits is returned by Spend when the user is absent or
	// has a zero balance.
	ErrInsufficientCredits = storage.ErrInsufficientCredits
	// ErrUserNotFound is returned by Balance for unknown users.
	ErrUserNotFound = storage.ErrNotFound
	// ErrInvalidGrant rejects grants with an empty user or non-positive amount.
	ErrInvalidGrant = errors.New("invalid credit grant")
)

// Service tracks per-user credit balances.
type Service struct {
	users  storage.UserStore
	events storage.PaymentEventStore
	log    *logger.Logger
}

// New constructs a ledger service.
func New(users storage.UserStore, events storage.PaymentEventStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{users: users, events: events, log: log}
}

// Grant adds amount credits to userID, creating the user when absent.
func (s *Service) Grant(ctx context.Context, userID string, amount int64) (user.User, error) {
	userID = strings.TrimSpace(userID)
	if err := validateGrant(userID, amount); err != nil {
		return user.User{}, err
	}

	u, err := s.users.AddCredits(ctx, userID, amount)
	if err != nil {
		return user.User{}, fmt.Errorf("add credits: %w", err)
	}
	metrics.RecordCreditsGranted(amount)
	s.log.WithField("user_id", userID).
		WithField("amount", amount).
		WithField("balance", u.Credits).
		Info("credits granted")
	return u, nil
}

// GrantForEvent applies a provider event exactly once. applied is false when
// the event id was already recorded; the balance is then left untouched.
func (s *Service) GrantForEvent(ctx context.Context, evt payment.Event) (u user.User, applied bool, err error) {
	evt.UserID = strings.TrimSpace(evt.UserID)
	if strings.TrimSpace(evt.ID) == "" {
		return user.User{}, false, fmt.Errorf("%w: event id is required", ErrInvalidGrant)
	}
	if err := validateGrant(evt.UserID, evt.Credits); err != nil {
		return user.User{}, false, err
	}

	u, err = s.events.ApplyEvent(ctx, evt)
	if errors.Is(err, storage.ErrDuplicateEvent) {
		s.log.WithField("event_id", evt.ID).
			WithField("user_id", evt.UserID).
			Warn("payment event already applied; skipping")
		return user.User{}, false, nil
	}
	if err != nil {
		return user.User{}, false, fmt.Errorf("apply event %s: %w", evt.ID, err)
	}

	metrics.RecordCreditsGranted(evt.Credits)
	s.log.WithField("event_id", evt.ID).
		WithField("user_id", evt.UserID).
		WithField("amount", evt.Credits).
		WithField("balance", u.Credits).
		Info("credits granted for payment event")
	return u, true, nil
}

// Spend removes exactly one credit from userID.
func (s *Service) Spend(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.SpendCredit(ctx, strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientCredits) {
			return user.User{}, ErrInsufficientCredits
		}
		return user.User{}, fmt.Errorf("spend credit: %w", err)
	}
	s.log.WithField("user_id", u.ID).WithField("balance", u.Credits).Debug("credit spent")
	return u, nil
}

// Refund returns one credit to userID after a failed wish.
func (s *Service) Refund(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.AddCredits(ctx, strings.TrimSpace(userID), 1)
	if err != nil {
		return user.User{}, fmt.Errorf("refund credit: %w", err)
	}
	s.log.WithField("user_id", u.ID).WithField("balance", u.Credits).Warn("credit refunded")
	return u, nil
}

// Balance returns the user record.
func (s *Service) Balance(ctx context.Context, userID string) (user.User, error) {
	return s.users.GetUser(ctx, strings.TrimSpace(userID))
}

func validateGrant(userID string, amount int64) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidGrant)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidGrant, amount)
	}
	return nil
}
