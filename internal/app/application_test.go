package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/app/domain/tier"
	"github.com/wishbank/wishbank/pkg/logger"
)

func TestNewDefaultsToMemory(t *testing.T) {
	application, err := New(Stores{}, Options{}, logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, application.Healthy(ctx))

	_, err = application.Ledger.Grant(ctx, "u1", 1)
	require.NoError(t, err)
	w, avatar, err := application.Wishes.Submit(ctx, "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Sequence)
	assert.Equal(t, tier.Common, avatar.Tier)

	assert.Len(t, application.Payments.Bundles(), 3)
}

func TestNewRejectsBadCatalog(t *testing.T) {
	_, err := New(Stores{}, Options{Bundles: []payment.Bundle{{ID: "x"}}}, logger.NewNop())
	require.Error(t, err)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(Stores{}, Options{RetentionSchedule: "whenever"}, logger.NewNop())
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	application, err := New(Stores{}, Options{EventRetention: time.Hour}, logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, application.Start(ctx))
	require.NoError(t, application.Stop(ctx))
}
