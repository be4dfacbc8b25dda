// Package testutil provides common testing utilities and store doubles.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/app/domain/user"
	"github.com/wishbank/wishbank/internal/app/domain/wish"
	"github.com/wishbank/wishbank/internal/app/storage/memory"
)

// PostgresDSN returns TEST_POSTGRES_DSN or skips the test when it is unset.
func PostgresDSN(t testing.TB) string {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres test")
	}
	return dsn
}

// FlakyStore is an in-memory store whose operations can be made to fail.
// Unset errors pass through to the embedded memory store.
type FlakyStore struct {
	*memory.Store

	mu    sync.RWMutex
	fails map[string]error
	calls map[string]int
}

// Operation names accepted by FailOn.
const (
	OpAddCredits   = "AddCredits"
	OpSpendCredit  = "SpendCredit"
	OpApplyEvent   = "ApplyEvent"
	OpCreateWish   = "CreateWish"
	OpNextSequence = "NextSequence"
	OpPing         = "Ping"
)

// NewFlakyStore wraps a fresh memory store.
func NewFlakyStore() *FlakyStore {
	return &FlakyStore{
		Store: memory.New(),
		fails: make(map[string]error),
		calls: make(map[string]int),
	}
}

// FailOn makes op return err until cleared with a nil err.
func (f *FlakyStore) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fails, op)
		return
	}
	f.fails[op] = err
}

// Calls reports how many times op was invoked.
func (f *FlakyStore) Calls(op string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[op]
}

func (f *FlakyStore) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fails[op]
}

func (f *FlakyStore) AddCredits(ctx context.Context, userID string, amount int64) (user.User, error) {
	if err := f.check(OpAddCredits); err != nil {
		return user.User{}, err
	}
	return f.Store.AddCredits(ctx, userID, amount)
}

func (f *FlakyStore) SpendCredit(ctx context.Context, userID string) (user.User, error) {
	if err := f.check(OpSpendCredit); err != nil {
		return user.User{}, err
	}
	return f.Store.SpendCredit(ctx, userID)
}

func (f *FlakyStore) ApplyEvent(ctx context.Context, evt payment.Event) (user.User, error) {
	if err := f.check(OpApplyEvent); err != nil {
		return user.User{}, err
	}
	return f.Store.ApplyEvent(ctx, evt)
}

func (f *FlakyStore) CreateWish(ctx context.Context, w wish.Wish) (wish.Wish, error) {
	if err := f.check(OpCreateWish); err != nil {
		return wish.Wish{}, err
	}
	return f.Store.CreateWish(ctx, w)
}

func (f *FlakyStore) NextSequence(ctx context.Context) (int64, error) {
	if err := f.check(OpNextSequence); err != nil {
		return 0, err
	}
	return f.Store.NextSequence(ctx)
}

func (f *FlakyStore) Ping(ctx context.Context) error {
	if err := f.check(OpPing); err != nil {
		return err
	}
	return f.Store.Ping(ctx)
}
