package wishes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wishbank/wishbank/internal/app/domain/tier"
	"github.com/wishbank/wishbank/internal/app/domain/wish"
	"github.com/wishbank/wishbank/internal/app/metrics"
	"github.com/wishbank/wishbank/internal/app/services/ledger"
	"github.com/wishbank/wishbank/internal/app/services/tiers"
	"github.com/wishbank/wishbank/internal/app/storage"
	"github.com/wishbank/wishbank/pkg/logger"
)

// ErrUserRequired rejects submissions without a user id.
var ErrUserRequired = errors.New("user id is required")

// Service records wishes against paid credits.
type Service struct {
	ledger *ledger.Service
	tiers  *tiers.Service
	store  storage.WishStore
	log    *logger.Logger
	now    func() time.Time
}

// New constructs a wish service.
func New(l *ledger.Service, t *tiers.Service, store storage.WishStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("wishes")
	}
	return &Service{ledger: l, tiers: t, store: store, log: log, now: time.Now}
}

// Submit spends one credit, draws the next sequence number and stores the
// wish under the tier that number earns. A failure after the credit was
// spent refunds it.
func (s *Service) Submit(ctx context.Context, userID, text string) (wish.Wish, tier.Avatar, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return wish.Wish{}, tier.Avatar{}, ErrUserRequired
	}

	if _, err := s.ledger.Spend(ctx, userID); err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			metrics.RecordWishRejected("insufficient_credits")
		} else {
			metrics.RecordWishRejected("ledger_error")
		}
		return wish.Wish{}, tier.Avatar{}, err
	}

	seq, avatar, err := s.tiers.Next(ctx)
	if err != nil {
		s.refund(ctx, userID, err)
		return wish.Wish{}, tier.Avatar{}, err
	}

	created, err := s.store.CreateWish(ctx, wish.Wish{
		UserID:     userID,
		Text:       wish.Truncate(text),
		AvatarTier: avatar.Tier,
		Sequence:   seq,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		s.refund(ctx, userID, err)
		return wish.Wish{}, tier.Avatar{}, fmt.Errorf("store wish: %w", err)
	}

	metrics.RecordWish(string(avatar.Tier))
	s.log.WithField("user_id", userID).
		WithField("wish_id", created.ID).
		WithField("sequence", seq).
		WithField("tier", avatar.Tier).
		Info("wish recorded")
	return created, avatar, nil
}

// ListForUser returns every wish the user submitted, oldest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]wish.Wish, error) {
	list, err := s.store.ListWishes(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("list wishes: %w", err)
	}
	return list, nil
}

func (s *Service) refund(ctx context.Context, userID string, cause error) {
	metrics.RecordWishRejected("store_error")
	// The request context may already be cancelled; the refund must still land.
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.ledger.Refund(refundCtx, userID); err != nil {
		s.log.WithError(err).
			WithField("user_id", userID).
			WithField("cause", cause.Error()).
			Error("refund after failed wish did not complete")
	}
}
