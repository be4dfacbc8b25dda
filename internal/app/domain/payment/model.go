package payment

import "time"

// Bundle is a fixed price/credit pair offered for purchase.
type Bundle struct {
	ID       string `json:"id" yaml:"id"`
	Amount   int64  `json:"amount" yaml:"amount"` // minor units (cents)
	Currency string `json:"currency" yaml:"currency"`
	Credits  int64  `json:"credits" yaml:"credits"`
}

// Event is the idempotency record of a provider event whose credits were
// applied to the ledger.
type Event struct {
	ID         string    `json:"event_id" db:"event_id"`
	Type       string    `json:"event_type" db:"event_type"`
	UserID     string    `json:"user_id" db:"user_id"`
	Credits    int64     `json:"credits" db:"credits"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
}

// DefaultBundles is the catalog used when no catalog file is configured.
func DefaultBundles() []Bundle {
	return []Bundle{
		{ID: "starter", Amount: 499, Currency: "usd", Credits: 10},
		{ID: "standard", Amount: 999, Currency: "usd", Credits: 20},
		{ID: "premium", Amount: 1999, Currency: "usd", Credits: 40},
	}
}
