package store

import (
	"context"
	"fmt"

	"github.com/okovalenko/tgrelay/internal/ai"
)

// UsageStore records AI calls for the stats command.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a usage store backed by db.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// RecordUsage logs one successful AI completion.
func (u *UsageStore) RecordUsage(ctx context.Context, conversationID, model string, usage ai.Usage) error {
	_, err := u.db.sql.ExecContext(ctx, `
		INSERT INTO ai_usage (conversation_id, model, input_tokens, output_tokens)
		VALUES (?, ?, ?, ?)`,
		conversationID, model, usage.InputTokens, usage.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("recording usage for %s: %w", conversationID, err)
	}
	return nil
}

// TotalQueries returns the number of recorded AI calls.
func (u *UsageStore) TotalQueries(ctx context.Context) (int64, error) {
	var n int64
	err := u.db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM ai_usage").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting usage: %w", err)
	}
	return n, nil
}

// ConversationCount is a per-conversation query tally.
type ConversationCount struct {
	ConversationID string
	Queries        int64
}

// TopConversations returns at most limit conversations ordered by
// query count, descending.
func (u *UsageStore) TopConversations(ctx context.Context, limit int) ([]ConversationCount, error) {
	rows, err := u.db.sql.QueryContext(ctx, `
		SELECT conversation_id, COUNT(*) AS n FROM ai_usage
		GROUP BY conversation_id ORDER BY n DESC, conversation_id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying top conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationCount
	for rows.Next() {
		var c ConversationCount
		if err := rows.Scan(&c.ConversationID, &c.Queries); err != nil {
			return nil, fmt.Errorf("scanning top conversations: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DailyCount is a per-day query tally.
type DailyCount struct {
	Day     string
	Queries int64
}

// DailyCounts returns query totals per day for the most recent days.
func (u *UsageStore) DailyCounts(ctx context.Context, days int) ([]DailyCount, error) {
	rows, err := u.db.sql.QueryContext(ctx, `
		SELECT date(created_at) AS day, COUNT(*) AS n FROM ai_usage
		GROUP BY day ORDER BY day DESC LIMIT ?`, days,
	)
	if err != nil {
		return nil, fmt.Errorf("querying daily counts: %w", err)
	}
	defer rows.Close()

	var out []DailyCount
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Day, &d.Queries); err != nil {
			return nil, fmt.Errorf("scanning daily counts: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
