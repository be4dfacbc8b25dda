package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/app/domain/user"
	"github.com/wishbank/wishbank/internal/app/domain/wish"
	"github.com/wishbank/wishbank/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
// The sequence lives only as long as the process.
type Store struct {
	mu       sync.RWMutex
	nextWish int64
	sequence int64
	users    map[string]user.User
	wishes   map[string][]wish.Wish
	events   map[string]payment.Event
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PaymentEventStore = (*Store)(nil)
var _ storage.WishStore = (*Store)(nil)
var _ storage.SequenceStore = (*Store)(nil)
var _ storage.HealthChecker = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextWish: 1,
		users:    make(map[string]user.User),
		wishes:   make(map[string][]wish.Wish),
		events:   make(map[string]payment.Event),
	}
}

// UserStore implementation -----------------------------------------------------

func (s *Store) AddCredits(_ context.Context, userID string, amount int64) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCreditsLocked(userID, amount), nil
}

func (s *Store) SpendCredit(_ context.Context, userID string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.Credits <= 0 {
		return user.User{}, storage.ErrInsufficientCredits
	}
	u.Credits--
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) addCreditsLocked(userID string, amount int64) user.User {
	now := time.Now().UTC()
	u, ok := s.users[userID]
	if !ok {
		u = user.User{ID: userID, CreatedAt: now}
	}
	u.Credits += amount
	u.UpdatedAt = now
	s.users[userID] = u
	return u
}

// PaymentEventStore implementation ---------------------------------------------

func (s *Store) ApplyEvent(_ context.Context, evt payment.Event) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.events[evt.ID]; seen {
		return user.User{}, storage.ErrDuplicateEvent
	}
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	s.events[evt.ID] = evt
	return s.addCreditsLocked(evt.UserID, evt.Credits), nil
}

func (s *Store) PruneEvents(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, evt := range s.events {
		if evt.ReceivedAt.Before(before) {
			delete(s.events, id)
			removed++
		}
	}
	return removed, nil
}

// WishStore implementation -----------------------------------------------------

func (s *Store) CreateWish(_ context.Context, w wish.Wish) (wish.Wish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(w.UserID) == "" {
		return wish.Wish{}, fmt.Errorf("user_id is required")
	}
	if _, ok := s.users[w.UserID]; !ok {
		return wish.Wish{}, fmt.Errorf("user %s: %w", w.UserID, storage.ErrNotFound)
	}

	w.ID = s.nextWish
	s.nextWish++
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	s.wishes[w.UserID] = append(s.wishes[w.UserID], w)
	return w, nil
}

func (s *Store) ListWishes(_ context.Context, userID string) ([]wish.Wish, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]wish.Wish, 0, len(s.wishes[userID]))
	result = append(result, s.wishes[userID]...)
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

// SequenceStore / HealthChecker --------------------------------------------------

func (s *Store) NextSequence(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return s.sequence, nil
}

// SetSequence positions the counter so the next draw returns value+1.
func (s *Store) SetSequence(value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence = value
}

func (s *Store) Ping(context.Context) error { return nil }
