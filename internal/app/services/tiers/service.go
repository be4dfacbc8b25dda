package tiers

import (
	"context"
	"fmt"

	"github.com/wishbank/wishbank/internal/app/domain/tier"
	"github.com/wishbank/wishbank/internal/app/storage"
	"github.com/wishbank/wishbank/pkg/logger"
)

// Assign maps a global wish sequence number to its reward avatar. The first
// matching rule wins, checked from rarest to most common, so a number that is
// a multiple of several periods always gets the rarest tier.
func Assign(n int64) tier.Avatar {
	var t tier.Tier
	switch {
	case n > 0 && n%tier.ApexEvery == 0:
		t = tier.Apex
	case n > 0 && n%tier.EliteEvery == 0:
		t = tier.Elite
	case n > 0 && n%tier.ContributorEvery == 0:
		t = tier.Contributor
	default:
		t = tier.Common
	}
	return tier.Avatar{Tier: t, RedeemUpTo: t.RedeemUpTo()}
}

// Service hands out global sequence numbers and the avatar each one earns.
type Service struct {
	seq storage.SequenceStore
	log *logger.Logger
}

// New constructs a tier service over the given sequence source.
func New(seq storage.SequenceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tiers")
	}
	return &Service{seq: seq, log: log}
}

// Next consumes one sequence number. Numbers are never reused, including
// when the caller later fails to record a wish.
func (s *Service) Next(ctx context.Context) (int64, tier.Avatar, error) {
	n, err := s.seq.NextSequence(ctx)
	if err != nil {
		return 0, tier.Avatar{}, fmt.Errorf("next wish sequence: %w", err)
	}
	avatar := Assign(n)
	if avatar.Tier != tier.Common {
		s.log.WithField("sequence", n).
			WithField("tier", avatar.Tier).
			Info("reward tier reached")
	}
	return n, avatar, nil
}
