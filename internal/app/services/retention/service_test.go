package retention

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/app/storage/memory"
	"github.com/wishbank/wishbank/pkg/logger"
)

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(memory.New(), Options{Schedule: "every tuesday"}, logger.NewNop())
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	svc, err := New(memory.New(), Options{}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, svc.schedule)
	assert.Equal(t, DefaultRetention, svc.retention)
	assert.Equal(t, "retention", svc.Name())
}

func TestPruneOnce(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.ApplyEvent(ctx, payment.Event{ID: "old", UserID: "u1", Credits: 10, ReceivedAt: now.Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = store.ApplyEvent(ctx, payment.Event{ID: "fresh", UserID: "u1", Credits: 10, ReceivedAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	svc, err := New(store, Options{Retention: 24 * time.Hour}, logger.NewNop())
	require.NoError(t, err)
	svc.now = func() time.Time { return now }

	removed, err := svc.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), u.Credits, "pruning must never touch balances")
}

func TestAddJobValidation(t *testing.T) {
	svc, err := New(memory.New(), Options{}, logger.NewNop())
	require.NoError(t, err)

	assert.Error(t, svc.AddJob(Job{Name: "nil"}))
	assert.Error(t, svc.AddJob(Job{Name: "bad", Schedule: "nope", Run: func(context.Context) {}}))
	assert.NoError(t, svc.AddJob(Job{Name: "inherit", Run: func(context.Context) {}}))
	assert.Equal(t, DefaultSchedule, svc.jobs[0].Schedule)
}

func TestStartRunsJobs(t *testing.T) {
	svc, err := New(memory.New(), Options{Schedule: "@every 1h"}, logger.NewNop())
	require.NoError(t, err)

	var runs int32
	require.NoError(t, svc.AddJob(Job{Name: "tick", Schedule: "@every 1s", Run: func(context.Context) {
		atomic.AddInt32(&runs, 1)
	}}))

	ctx := context.Background()
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Start(ctx))
	assert.Error(t, svc.AddJob(Job{Name: "late", Run: func(context.Context) {}}))

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, 5*time.Second, 50*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(stopCtx))
	require.NoError(t, svc.Stop(stopCtx))
}
