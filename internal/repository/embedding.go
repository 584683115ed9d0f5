package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hray3182/CalBuddy/internal/database"
	"github.com/jackc/pgx/v5"
)

// EmbeddingRepository records which embeddings were generated, per user.
type EmbeddingRepository struct {
	db *database.DB
}

func NewEmbeddingRepository(db *database.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// ForUser returns the ledger of one identity provider user.
func (r *EmbeddingRepository) ForUser(clerkID string) *EmbeddingLedger {
	return &EmbeddingLedger{db: r.db, clerkID: clerkID}
}

// Prune drops per-event marks older than cutoff and reports how many went.
func (r *EmbeddingRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM embedding_mark WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// EmbeddingLedger implements query.EmbeddingLedger on Postgres.
type EmbeddingLedger struct {
	db      *database.DB
	clerkID string
}

func (l *EmbeddingLedger) LastBulk(ctx context.Context) (time.Time, bool, error) {
	var at time.Time
	err := l.db.Pool.QueryRow(ctx,
		`SELECT last_run_at FROM embedding_run WHERE clerk_id = $1`,
		l.clerkID,
	).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (l *EmbeddingLedger) MarkBulk(ctx context.Context, at time.Time) error {
	_, err := l.db.Pool.Exec(ctx,
		`INSERT INTO embedding_run (clerk_id, last_run_at) VALUES ($1, $2)
		 ON CONFLICT (clerk_id) DO UPDATE SET last_run_at = EXCLUDED.last_run_at`,
		l.clerkID, at,
	)
	return err
}

func (l *EmbeddingLedger) Seen(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := l.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM embedding_mark WHERE clerk_id = $1 AND mark_key = $2)`,
		l.clerkID, key,
	).Scan(&exists)
	return exists, err
}

func (l *EmbeddingLedger) MarkSeen(ctx context.Context, key string) error {
	_, err := l.db.Pool.Exec(ctx,
		`INSERT INTO embedding_mark (clerk_id, mark_key) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		l.clerkID, key,
	)
	return err
}
