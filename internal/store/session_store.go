package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okovalenko/tgrelay/internal/domain"
)

// SQLiteSessionStore persists conversations with optimistic concurrency.
// Every successful Save increments the conversation version by exactly
// one; a Save against a stale version fails with ErrVersionConflict and
// leaves the stored state untouched.
type SQLiteSessionStore struct {
	db *DB
}

// NewSessionStore creates a session store backed by db.
func NewSessionStore(db *DB) *SQLiteSessionStore {
	return &SQLiteSessionStore{db: db}
}

// Load fetches a conversation and its full turn history. Returns
// ErrNotFound when no conversation with the given id exists.
func (s *SQLiteSessionStore) Load(ctx context.Context, id string) (*domain.Conversation, error) {
	conv := &domain.Conversation{ID: id}

	var lastActivity, createdAt string
	err := s.db.sql.QueryRowContext(ctx,
		"SELECT version, last_activity, created_at FROM conversations WHERE id = ?", id,
	).Scan(&conv.Version, &lastActivity, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}

	if conv.LastActivity, err = parseTime(lastActivity); err != nil {
		return nil, fmt.Errorf("conversation %s last_activity: %w", id, err)
	}
	if conv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("conversation %s created_at: %w", id, err)
	}

	rows, err := s.db.sql.QueryContext(ctx,
		"SELECT role, text, timestamp FROM turns WHERE conversation_id = ? ORDER BY seq", id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading turns for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var turn domain.Turn
		var ts string
		if err := rows.Scan(&turn.Role, &turn.Text, &ts); err != nil {
			return nil, fmt.Errorf("scanning turn for %s: %w", id, err)
		}
		if turn.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("turn timestamp for %s: %w", id, err)
		}
		conv.Turns = append(conv.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns for %s: %w", id, err)
	}

	return conv, nil
}

// Save writes the conversation if and only if the stored version still
// equals expectedVersion. expectedVersion 0 means the conversation must
// not exist yet. Turns are append-only: only turns past the persisted
// count are inserted. On success conv.Version is set to
// expectedVersion+1.
func (s *SQLiteSessionStore) Save(ctx context.Context, conv *domain.Conversation, expectedVersion int64) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save for %s: %w", conv.ID, err)
	}
	defer tx.Rollback()

	newVersion := expectedVersion + 1

	if expectedVersion == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, version, last_activity, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			conv.ID, newVersion, formatTime(conv.LastActivity), formatTime(conv.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting conversation %s: %w", conv.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("inserting conversation %s: %w", conv.ID, err)
		}
		if n == 0 {
			return ErrVersionConflict
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE conversations SET version = ?, last_activity = ?
			WHERE id = ? AND version = ?`,
			newVersion, formatTime(conv.LastActivity), conv.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("updating conversation %s: %w", conv.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating conversation %s: %w", conv.ID, err)
		}
		if n == 0 {
			return ErrVersionConflict
		}
	}

	var stored int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM turns WHERE conversation_id = ?", conv.ID,
	).Scan(&stored); err != nil {
		return fmt.Errorf("counting turns for %s: %w", conv.ID, err)
	}
	if stored > len(conv.Turns) {
		return fmt.Errorf("conversation %s has %d stored turns but save carries %d: %w",
			conv.ID, stored, len(conv.Turns), ErrVersionConflict)
	}

	for i := stored; i < len(conv.Turns); i++ {
		t := conv.Turns[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turns (conversation_id, seq, role, text, timestamp)
			VALUES (?, ?, ?, ?, ?)`,
			conv.ID, i, t.Role, t.Text, formatTime(t.Timestamp),
		); err != nil {
			return fmt.Errorf("inserting turn %d for %s: %w", i, conv.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save for %s: %w", conv.ID, err)
	}

	conv.Version = newVersion
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
