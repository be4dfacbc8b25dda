package storage

import (
	"context"
	"errors"
	"time"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/app/domain/user"
	"github.com/wishbank/wishbank/internal/app/domain/wish"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientCredits is returned by SpendCredit when the user is
	// absent or holds no credits.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrDuplicateEvent is returned by ApplyEvent when the event id was
	// already recorded.
	ErrDuplicateEvent = errors.New("event already applied")
)

// UserStore persists credit balances.
type UserStore interface {
	// AddCredits creates the user when absent and adds amount to the balance.
	AddCredits(ctx context.Context, userID string, amount int64) (user.User, error)
	// SpendCredit removes exactly one credit in a single conditional update.
	SpendCredit(ctx context.Context, userID string) (user.User, error)
	GetUser(ctx context.Context, userID string) (user.User, error)
}

// PaymentEventStore records applied provider events.
type PaymentEventStore interface {
	// ApplyEvent records evt and adds evt.Credits to evt.UserID atomically.
	ApplyEvent(ctx context.Context, evt payment.Event) (user.User, error)
	PruneEvents(ctx context.Context, before time.Time) (int64, error)
}

// WishStore persists submitted wishes.
type WishStore interface {
	CreateWish(ctx context.Context, w wish.Wish) (wish.Wish, error)
	ListWishes(ctx context.Context, userID string) ([]wish.Wish, error)
}

// SequenceStore hands out the global wish sequence. Values are strictly
// increasing across calls and process restarts.
type SequenceStore interface {
	NextSequence(ctx context.Context) (int64, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
