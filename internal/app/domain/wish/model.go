package wish

import (
	"time"
	"unicode/utf8"

	"github.com/wishbank/wishbank/internal/app/domain/tier"
)

// MaxTextLength is the number of characters kept from a submitted wish.
const MaxTextLength = 500

// Wish is an immutable record of a submitted wish and the tier it drew.
type Wish struct {
	ID         int64     `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Text       string    `json:"text" db:"text"`
	AvatarTier tier.Tier `json:"avatar_tier" db:"avatar_tier"`
	Sequence   int64     `json:"sequence" db:"sequence"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Truncate cuts text to MaxTextLength characters without splitting a
// multi-byte character.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text
	}
	count := 0
	for i := range text {
		if count == MaxTextLength {
			return text[:i]
		}
		count++
	}
	return text
}
