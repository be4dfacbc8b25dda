package user

import "time"

// User holds a spendable credit balance. Users are created implicitly by the
// first credit grant.
type User struct {
	ID        string    `json:"id" db:"id"`
	Credits   int64     `json:"credits" db:"credits"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
