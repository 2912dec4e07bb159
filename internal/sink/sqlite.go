package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shaiso/chatsoak/internal/domain"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		prompt      TEXT NOT NULL,
		reply       TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at DESC);
`

// sqliteTime — фиксированная ширина, чтобы created_at сортировался как строка.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite — журнал в локальной SQLite-базе; также отдаёт историю.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite открывает (или создаёт) базу и таблицу messages.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Один писатель: go-sqlite3 не любит параллельную запись
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Append сохраняет запись.
func (s *SQLite) Append(ctx context.Context, rec domain.Record) error {
	query := `
		INSERT OR IGNORE INTO messages (id, session_id, created_at, prompt, reply)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID.String(),
		rec.SessionID.String(),
		rec.Timestamp.UTC().Format(sqliteTime),
		rec.Prompt,
		rec.Reply,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Recent возвращает последние limit записей, новые первыми.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]domain.Record, error) {
	query := `
		SELECT id, session_id, created_at, prompt, reply
		FROM messages
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var id, sessionID, createdAt string
		var rec domain.Record
		if err := rows.Scan(&id, &sessionID, &createdAt, &rec.Prompt, &rec.Reply); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		if rec.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, fmt.Errorf("parse session id: %w", err)
		}
		if rec.Timestamp, err = time.Parse(sqliteTime, createdAt); err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close закрывает базу.
func (s *SQLite) Close() error {
	return s.db.Close()
}
