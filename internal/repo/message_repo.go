package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/chatsoak/internal/domain"
)

const messagesSchema = `
	CREATE TABLE IF NOT EXISTS messages (
		id          UUID PRIMARY KEY,
		session_id  UUID NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		prompt      TEXT NOT NULL,
		reply       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS messages_created_at_idx ON messages (created_at DESC);
	CREATE INDEX IF NOT EXISTS messages_session_idx ON messages (session_id);
`

// MessageRepo — журнал сообщений в PostgreSQL.
type MessageRepo struct {
	pool *pgxpool.Pool
}

// NewMessageRepo создаёт новый MessageRepo.
func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// EnsureSchema создаёт таблицу messages, если её нет.
func (r *MessageRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, messagesSchema); err != nil {
		return fmt.Errorf("ensure messages schema: %w", err)
	}
	return nil
}

// Append сохраняет запись. Повторная вставка того же ID игнорируется.
func (r *MessageRepo) Append(ctx context.Context, rec domain.Record) error {
	query := `
		INSERT INTO messages (id, session_id, created_at, prompt, reply)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.Timestamp,
		rec.Prompt,
		rec.Reply,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetByID возвращает запись по ID.
func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	query := `
		SELECT id, session_id, created_at, prompt, reply
		FROM messages
		WHERE id = $1
	`
	var rec domain.Record
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.Timestamp,
		&rec.Prompt,
		&rec.Reply,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message by id: %w", err)
	}
	return &rec, nil
}

// Recent возвращает последние limit записей, новые первыми.
func (r *MessageRepo) Recent(ctx context.Context, limit int) ([]domain.Record, error) {
	query := `
		SELECT id, session_id, created_at, prompt, reply
		FROM messages
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Record, error) {
		var rec domain.Record
		err := row.Scan(&rec.ID, &rec.SessionID, &rec.Timestamp, &rec.Prompt, &rec.Reply)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	return records, nil
}

// CountBySession возвращает количество записей сессии.
func (r *MessageRepo) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
