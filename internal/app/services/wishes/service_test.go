package wishes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishbank/wishbank/internal/app/domain/tier"
	"github.com/wishbank/wishbank/internal/app/domain/wish"
	"github.com/wishbank/wishbank/internal/app/services/ledger"
	"github.com/wishbank/wishbank/internal/app/services/tiers"
	"github.com/wishbank/wishbank/internal/app/storage/memory"
	"github.com/wishbank/wishbank/pkg/logger"
	"github.com/wishbank/wishbank/pkg/testutil"
)

func newService(store *memory.Store) (*Service, *ledger.Service) {
	log := logger.NewNop()
	l := ledger.New(store, store, log)
	return New(l, tiers.New(store, log), store, log), l
}

func TestSubmitSpendsOneCredit(t *testing.T) {
	store := memory.New()
	svc, l := newService(store)
	ctx := context.Background()
	_, err := l.Grant(ctx, "u1", 2)
	require.NoError(t, err)

	w, avatar, err := svc.Submit(ctx, "u1", "a pony")
	require.NoError(t, err)
	assert.Equal(t, "a pony", w.Text)
	assert.Equal(t, int64(1), w.Sequence)
	assert.Equal(t, tier.Common, avatar.Tier)
	assert.Equal(t, tier.Common, w.AvatarTier)

	u, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Credits)
}

func TestSubmitWithoutCredits(t *testing.T) {
	store := memory.New()
	svc, l := newService(store)
	ctx := context.Background()
	_, err := l.Grant(ctx, "u1", 1)
	require.NoError(t, err)
	_, err = l.Spend(ctx, "u1")
	require.NoError(t, err)

	_, _, err = svc.Submit(ctx, "u1", "a boat")
	assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)

	list, err := svc.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list, "no wish may be recorded without a credit")
}

func TestSubmitRequiresUser(t *testing.T) {
	svc, _ := newService(memory.New())
	_, _, err := svc.Submit(context.Background(), "  ", "x")
	assert.ErrorIs(t, err, ErrUserRequired)
}

func TestSubmitTruncatesText(t *testing.T) {
	store := memory.New()
	svc, l := newService(store)
	ctx := context.Background()
	_, err := l.Grant(ctx, "u1", 1)
	require.NoError(t, err)

	long := strings.Repeat("é", wish.MaxTextLength+37)
	w, _, err := svc.Submit(ctx, "u1", long)
	require.NoError(t, err)
	assert.Equal(t, wish.MaxTextLength, len([]rune(w.Text)))
}

func TestSubmitApexAtMilestone(t *testing.T) {
	store := memory.New()
	store.SetSequence(1_499_999)
	svc, l := newService(store)
	ctx := context.Background()
	_, err := l.Grant(ctx, "u1", 1)
	require.NoError(t, err)

	w, avatar, err := svc.Submit(ctx, "u1", "the big one")
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), w.Sequence)
	assert.Equal(t, tier.Apex, avatar.Tier)
	assert.Equal(t, 100, avatar.RedeemUpTo)
}

func TestSubmitRefundsOnFailure(t *testing.T) {
	for _, op := range []string{testutil.OpCreateWish, testutil.OpNextSequence} {
		t.Run(op, func(t *testing.T) {
			store := testutil.NewFlakyStore()
			log := logger.NewNop()
			l := ledger.New(store, store, log)
			svc := New(l, tiers.New(store, log), store, log)
			ctx := context.Background()
			_, err := l.Grant(ctx, "u1", 1)
			require.NoError(t, err)

			store.FailOn(op, errors.New("disk full"))
			_, _, err = svc.Submit(ctx, "u1", "lost")
			require.Error(t, err)
			assert.NotErrorIs(t, err, ledger.ErrInsufficientCredits)

			u, err := l.Balance(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), u.Credits, "credit must be refunded")

			list, err := svc.ListForUser(ctx, "u1")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestListForUserOrdered(t *testing.T) {
	store := memory.New()
	svc, l := newService(store)
	ctx := context.Background()
	_, err := l.Grant(ctx, "u1", 3)
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, _, err := svc.Submit(ctx, "u1", text)
		require.NoError(t, err)
	}

	list, err := svc.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "one", list[0].Text)
	assert.Equal(t, "three", list[2].Text)
}
