package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/google"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store manages all SQLite operations, WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tokens (
		user_email    TEXT PRIMARY KEY,
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expiry        TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id TEXT NOT NULL,
		sender    TEXT,
		subject   TEXT,
		content   TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveToken inserts or replaces the OAuth token for an account.
func (s *Store) SaveToken(ctx context.Context, account string, rec *google.TokenRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (user_email, access_token, refresh_token, expiry)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_email) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = ''
				THEN tokens.refresh_token ELSE excluded.refresh_token END,
			expiry = excluded.expiry`,
		account, rec.AccessToken, rec.RefreshToken, rec.Expiry.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save token for %s: %w", account, err)
	}
	return nil
}

// GetToken loads the OAuth token for an account. Returns ErrNotFound if
// the account has never authorized.
func (s *Store) GetToken(ctx context.Context, account string) (*google.TokenRecord, error) {
	var rec google.TokenRecord
	var expiry string
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, expiry FROM tokens WHERE user_email = ?`,
		account).Scan(&rec.AccessToken, &rec.RefreshToken, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token for %s: %w", account, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get token for %s: %w", account, err)
	}

	rec.Expiry, err = time.Parse(time.RFC3339, expiry)
	if err != nil {
		return nil, fmt.Errorf("parse token expiry for %s: %w", account, err)
	}
	return &rec, nil
}

// DeleteToken removes the OAuth token for an account.
func (s *Store) DeleteToken(ctx context.Context, account string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE user_email = ?`, account)
	if err != nil {
		return fmt.Errorf("delete token for %s: %w", account, err)
	}
	return nil
}

// ListAccounts returns the accounts with stored tokens, sorted.
func (s *Store) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_email FROM tokens ORDER BY user_email`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Message is one email message recorded against a thread.
type Message struct {
	ID        int64
	ThreadID  string
	Sender    string
	Subject   string
	Content   string
	Timestamp time.Time
}

// AppendMessage records a message in a thread's history.
func (s *Store) AppendMessage(ctx context.Context, m Message) error {
	ts := m.Timestamp
	if ts.IsZero() {
		return fmt.Errorf("append message: timestamp must be set")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (thread_id, sender, subject, content, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		m.ThreadID, m.Sender, m.Subject, m.Content, ts.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append message to thread %s: %w", m.ThreadID, err)
	}
	return nil
}

// ThreadMessages returns up to max messages of a thread in chronological
// order.
func (s *Store) ThreadMessages(ctx context.Context, threadID string, max int) ([]Message, error) {
	if max <= 0 {
		max = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, sender, subject, content, timestamp
		FROM messages WHERE thread_id = ?
		ORDER BY timestamp LIMIT ?`, threadID, max)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Sender, &m.Subject, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse message timestamp: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ThreadHistory formats a thread's messages as a transcript suitable for
// handing to the classifier as conversation context.
func (s *Store) ThreadHistory(ctx context.Context, threadID string, max int) (string, error) {
	msgs, err := s.ThreadMessages(ctx, threadID, max)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "No messages found for this thread.", nil
	}

	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s - %s:\n%s\n",
			m.Timestamp.Format("2006-01-02 15:04"), m.Sender, strings.TrimSpace(m.Content))
	}
	return b.String(), nil
}
