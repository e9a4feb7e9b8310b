package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/kb-router/internal/core/domain"
)

// SessionRepository keeps chat sessions and their message history in
// Postgres. It implements ports.SessionStore.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS session_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages(session_id, created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) CreateSession(ctx context.Context, title string) (*domain.Session, error) {
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	session := domain.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	session.UpdatedAt = session.CreatedAt

	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (id, title, created_at, updated_at)
VALUES ($1,$2,$3,$4)
`, session.ID, session.Title, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, created_at, updated_at
FROM sessions
WHERE id = $1
`, id)

	var session domain.Session
	if err := row.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", err)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, created_at, updated_at
FROM sessions
ORDER BY updated_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Session, 0, limit)
	for rows.Next() {
		var session domain.Session
		if err := rows.Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func (r *SessionRepository) SetTitle(ctx context.Context, id, title string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE sessions
SET title = $2, updated_at = $3
WHERE id = $1
`, id, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set session title: %w", err)
	}
	return requireRow(res, "set session title")
}

func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(res, "delete session")
}

func (r *SessionRepository) AppendMessage(ctx context.Context, msg domain.SessionMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO session_messages (id, session_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5)
`, msg.ID, msg.SessionID, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE sessions SET updated_at = $2 WHERE id = $1
`, msg.SessionID, msg.CreatedAt); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.SessionMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, role, content, created_at
FROM session_messages
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SessionMessage, 0, limit)
	for rows.Next() {
		var msg domain.SessionMessage
		var role string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = domain.Role(role)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func requireRow(res sql.Result, operation string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrSessionNotFound, operation, sql.ErrNoRows)
	}
	return nil
}
