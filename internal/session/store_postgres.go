package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS console_sessions (
	client_id TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	role TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure console_sessions schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, clientID string) (Session, error) {
	const q = `SELECT token, role FROM console_sessions WHERE client_id = $1`
	var r record
	if err := s.db.QueryRowContext(ctx, q, clientID).Scan(&r.Token, &r.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return fromRecord(r), nil
}

func (s *PostgresStore) Save(ctx context.Context, clientID string, sess Session) error {
	if !sess.Authenticated() {
		return ErrIncompleteSession
	}
	const q = `
INSERT INTO console_sessions (client_id, token, role, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (client_id) DO UPDATE SET token = EXCLUDED.token, role = EXCLUDED.role, updated_at = now()`
	r := sess.record()
	if _, err := s.db.ExecContext(ctx, q, clientID, r.Token, r.Role); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, clientID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM console_sessions WHERE client_id = $1`, clientID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) All(ctx context.Context) (map[string]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT client_id, token, role FROM console_sessions`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Session)
	for rows.Next() {
		var id string
		var r record
		if err := rows.Scan(&id, &r.Token, &r.Role); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out[id] = fromRecord(r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
