package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/app/domain/user"
	"github.com/wishbank/wishbank/internal/app/domain/wish"
	"github.com/wishbank/wishbank/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PaymentEventStore = (*Store)(nil)
var _ storage.WishStore = (*Store)(nil)
var _ storage.SequenceStore = (*Store)(nil)
var _ storage.HealthChecker = (*Store)(nil)

// uniqueViolation is the SQLSTATE PostgreSQL reports for duplicate keys.
const uniqueViolation = pq.ErrorCode("23505")

const upsertCredits = `
	INSERT INTO users (id, credits, created_at, updated_at)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (id) DO UPDATE
	SET credits = users.credits + EXCLUDED.credits, updated_at = EXCLUDED.updated_at
	RETURNING id, credits, created_at, updated_at
`

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) AddCredits(ctx context.Context, userID string, amount int64) (user.User, error) {
	var u user.User
	if err := s.db.GetContext(ctx, &u, upsertCredits, userID, amount, time.Now().UTC()); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) SpendCredit(ctx context.Context, userID string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		UPDATE users
		SET credits = credits - 1, updated_at = $2
		WHERE id = $1 AND credits > 0
		RETURNING id, credits, created_at, updated_at
	`, userID, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrInsufficientCredits
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, credits, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// --- PaymentEventStore ------------------------------------------------------

func (s *Store) ApplyEvent(ctx context.Context, evt payment.Event) (user.User, error) {
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO payment_events (event_id, event_type, user_id, credits, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`, evt.ID, evt.Type, evt.UserID, evt.Credits, evt.ReceivedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return user.User{}, storage.ErrDuplicateEvent
		}
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrDuplicateEvent
	}

	var u user.User
	if err := tx.GetContext(ctx, &u, upsertCredits, evt.UserID, evt.Credits, evt.ReceivedAt); err != nil {
		return user.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM payment_events WHERE received_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- WishStore ----------------------------------------------------------------

func (s *Store) CreateWish(ctx context.Context, w wish.Wish) (wish.Wish, error) {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	var created wish.Wish
	err := s.db.GetContext(ctx, &created, `
		INSERT INTO wishes (user_id, text, avatar_tier, sequence, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, text, avatar_tier, sequence, created_at
	`, w.UserID, w.Text, string(w.AvatarTier), w.Sequence, w.CreatedAt)
	if err != nil {
		return wish.Wish{}, err
	}
	return created, nil
}

func (s *Store) ListWishes(ctx context.Context, userID string) ([]wish.Wish, error) {
	result := []wish.Wish{}
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, user_id, text, avatar_tier, sequence, created_at
		FROM wishes
		WHERE user_id = $1
		ORDER BY sequence
	`, userID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- SequenceStore / HealthChecker ------------------------------------------

func (s *Store) NextSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.GetContext(ctx, &seq, `SELECT nextval('wish_sequence')`); err != nil {
		return 0, err
	}
	return seq, nil
}

// LastSequence reports the highest wish sequence already handed out, from
// either the database sequence or stored wishes.
func (s *Store) LastSequence(ctx context.Context) (int64, error) {
	var last int64
	err := s.db.GetContext(ctx, &last, `
		SELECT GREATEST(
			(SELECT CASE WHEN is_called THEN last_value ELSE last_value - 1 END FROM wish_sequence),
			(SELECT COALESCE(MAX(sequence), 0) FROM wishes)
		)
	`)
	if err != nil {
		return 0, err
	}
	return last, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
