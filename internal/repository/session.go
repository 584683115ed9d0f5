package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hray3182/CalBuddy/internal/database"
	"github.com/hray3182/CalBuddy/internal/models"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when no row matches.
var ErrNotFound = errors.New("not found")

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save stores the session token of a Telegram user, replacing any previous one.
func (r *SessionRepository) Save(ctx context.Context, s *models.ChatSession) error {
	var expires *time.Time
	if !s.ExpiresAt.IsZero() {
		expires = &s.ExpiresAt
	}
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO chat_session (telegram_id, token, clerk_id, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		 ON CONFLICT (telegram_id) DO UPDATE SET
		   token = EXCLUDED.token, clerk_id = EXCLUDED.clerk_id,
		   expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
		 RETURNING updated_at`,
		s.TelegramID, s.Token, s.ClerkID, expires,
	).Scan(&s.UpdatedAt)
}

func (r *SessionRepository) Get(ctx context.Context, telegramID int64) (*models.ChatSession, error) {
	s := &models.ChatSession{}
	var expires *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT telegram_id, token, clerk_id, expires_at, updated_at
		 FROM chat_session WHERE telegram_id = $1`,
		telegramID,
	).Scan(&s.TelegramID, &s.Token, &s.ClerkID, &expires, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expires != nil {
		s.ExpiresAt = *expires
	}
	return s, nil
}

// ListActive returns sessions that have not expired at now.
func (r *SessionRepository) ListActive(ctx context.Context, now time.Time) ([]*models.ChatSession, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT telegram_id, token, clerk_id, expires_at, updated_at
		 FROM chat_session WHERE expires_at IS NULL OR expires_at > $1
		 ORDER BY updated_at DESC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.ChatSession
	for rows.Next() {
		s := &models.ChatSession{}
		var expires *time.Time
		if err := rows.Scan(&s.TelegramID, &s.Token, &s.ClerkID, &expires, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if expires != nil {
			s.ExpiresAt = *expires
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) Delete(ctx context.Context, telegramID int64) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM chat_session WHERE telegram_id = $1`, telegramID)
	return err
}
