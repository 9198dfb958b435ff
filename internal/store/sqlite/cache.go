// Package sqlite keeps a local mirror of confirmed messages so a reopened
// conversation renders history before the network round trip completes.
// The mirror is never authoritative: the in-memory log owns ordering and
// reconciliation, and only settled (sent) messages are written through.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/50naija1/pizuna-app/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL,
	id              TEXT NOT NULL,
	from_user       TEXT NOT NULL,
	to_user         TEXT NOT NULL,
	body            TEXT NOT NULL,
	type            TEXT NOT NULL,
	created_at      DATETIME NOT NULL,
	PRIMARY KEY (conversation_id, id)
);

CREATE INDEX IF NOT EXISTS idx_messages_conv
	ON messages(conversation_id, created_at);
`

// Cache is a sqlite-backed message mirror.
type Cache struct {
	db *sql.DB
}

// New opens (creating if needed) the cache at dbPath.
func New(dbPath string) (*Cache, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup opens the cache and runs a setup function.
// Useful for tests to apply an alternative schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*Cache, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put records a settled message. Re-inserting the same id is a no-op so
// replayed deliveries and history pages never duplicate rows.
func (c *Cache) Put(ctx context.Context, msg store.Message) error {
	query := `
		INSERT OR IGNORE INTO messages
			(conversation_id, id, from_user, to_user, body, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.db.ExecContext(ctx, query,
		msg.ConversationID,
		msg.ID,
		msg.From,
		msg.To,
		msg.Body,
		string(msg.Type),
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Recent returns up to limit messages of the conversation, oldest first.
func (c *Cache) Recent(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
	query := `
		SELECT id, from_user, to_user, body, type, created_at
		FROM (
			SELECT rowid AS rid, id, from_user, to_user, body, type, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, rid ASC
	`
	rows, err := c.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []store.Message
	for rows.Next() {
		var (
			m         store.Message
			typ       string
			createdAt time.Time
		)
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Body, &typ, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ConversationID = conversationID
		m.Type = store.MessageType(typ)
		m.CreatedAt = createdAt
		m.Status = store.StatusSent
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}
