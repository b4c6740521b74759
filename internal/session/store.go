// Package session persists conversations in a SQLite database so the CLI can
// list and resume them.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ramptix/leicht/pkg/llm"
	"github.com/ramptix/leicht/pkg/logger"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	// Fixed width so that stored timestamps sort lexically.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
	titleLimit = 60
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrAmbiguous = errors.New("session id prefix is ambiguous")
)

// Session describes a stored conversation.
type Session struct {
	ID        string
	Title     string
	Provider  string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  int
}

// Store is a SQLite-backed session store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// DefaultPath is the database location used by the CLI.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "leicht", "sessions.db")
	}
	return filepath.Join(".leicht", "sessions.db")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create starts an empty session.
func (s *Store) Create(ctx context.Context, provider, model string) (*Session, error) {
	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Provider:  provider,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, provider, model, created_at, updated_at)
		VALUES (?, '', ?, ?, ?, ?)`,
		sess.ID, provider, model, now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// Append adds msgs to the end of the session. The first user message becomes
// the session title.
func (s *Store) Append(ctx context.Context, id string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var title string
	var next int
	err = tx.QueryRowContext(ctx, `
		SELECT s.title, COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = s.id), 0)
		FROM sessions s WHERE s.id = ?`, id).Scan(&title, &next)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	now := s.now().UTC().Format(timeFormat)
	for _, m := range msgs {
		next++
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, seq, role, content, created_at)
			VALUES (?, ?, ?, ?, ?)`, id, next, string(m.Role), m.Content, now); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if title == "" && m.Role == llm.RoleUser {
			title = logger.Clamp(strings.Join(strings.Fields(m.Content), " "), titleLimit)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`, title, now, id); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return tx.Commit()
}

// Get returns the session whose id is, or uniquely starts with, id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, selectSessions+`
		WHERE s.id = ? OR s.id LIKE ? ESCAPE '\'
		GROUP BY s.id
		LIMIT 2`, id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}

	for _, sess := range sessions {
		if sess.ID == id {
			return sess, nil
		}
	}
	switch len(sessions) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return sessions[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
}

// List returns up to limit sessions, most recently updated first.
func (s *Store) List(ctx context.Context, limit int) ([]*Session, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectSessions+`
		GROUP BY s.id
		ORDER BY s.updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	return scanSessions(rows)
}

// Messages returns the session's messages in order.
func (s *Store) Messages(ctx context.Context, id string) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []llm.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msgs = append(msgs, llm.Message{Role: llm.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return msgs, nil
}

// Delete removes a session and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const selectSessions = `
	SELECT s.id, s.title, s.provider, s.model, s.created_at, s.updated_at, COUNT(m.seq)
	FROM sessions s LEFT JOIN messages m ON m.session_id = s.id`

func scanSessions(rows *sql.Rows) ([]*Session, error) {
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var created, updated string
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Provider, &sess.Model, &created, &updated, &sess.Messages); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.CreatedAt, _ = time.Parse(timeFormat, created)
		sess.UpdatedAt, _ = time.Parse(timeFormat, updated)
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
