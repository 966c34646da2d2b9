package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okovalenko/tgrelay/internal/ai"
	"github.com/okovalenko/tgrelay/internal/domain"
	"github.com/okovalenko/tgrelay/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"conversations", "turns", "ai_usage"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- Session store tests ---

func newConv(id string) *domain.Conversation {
	return domain.NewConversation(id, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestSessionStore_LoadMissing(t *testing.T) {
	s := NewSessionStore(testDB(t))

	_, err := s.Load(context.Background(), "chat:1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_SaveAndLoad(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	conv := newConv("chat:1")
	conv.Append(domain.RoleUser, "hello", time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC))
	conv.Append(domain.RoleAssistant, "hi there", time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC))
	conv.LastActivity = time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC)

	require.NoError(t, s.Save(ctx, conv, 0))
	assert.Equal(t, int64(1), conv.Version)

	loaded, err := s.Load(ctx, "chat:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	require.Len(t, loaded.Turns, 2)
	assert.Equal(t, domain.RoleUser, loaded.Turns[0].Role)
	assert.Equal(t, "hello", loaded.Turns[0].Text)
	assert.Equal(t, domain.RoleAssistant, loaded.Turns[1].Role)
	assert.True(t, loaded.Turns[0].Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)))
	assert.True(t, loaded.LastActivity.Equal(conv.LastActivity))
}

func TestSessionStore_VersionIncrementsByOne(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	conv := newConv("chat:1")
	conv.Append(domain.RoleUser, "one", time.Now().UTC())
	require.NoError(t, s.Save(ctx, conv, 0))

	for i := int64(1); i < 5; i++ {
		conv.Append(domain.RoleUser, "more", time.Now().UTC())
		require.NoError(t, s.Save(ctx, conv, i))
		assert.Equal(t, i+1, conv.Version)
	}

	loaded, err := s.Load(ctx, "chat:1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), loaded.Version)
	assert.Len(t, loaded.Turns, 5)
}

func TestSessionStore_CreateConflict(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	first := newConv("chat:1")
	first.Append(domain.RoleUser, "hello", time.Now().UTC())
	require.NoError(t, s.Save(ctx, first, 0))

	// A second writer that thinks the conversation is new.
	second := newConv("chat:1")
	second.Append(domain.RoleUser, "race", time.Now().UTC())
	err := s.Save(ctx, second, 0)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Loser's write left nothing behind.
	loaded, err := s.Load(ctx, "chat:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	require.Len(t, loaded.Turns, 1)
	assert.Equal(t, "hello", loaded.Turns[0].Text)
}

func TestSessionStore_StaleVersionConflict(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	conv := newConv("chat:1")
	conv.Append(domain.RoleUser, "hello", time.Now().UTC())
	require.NoError(t, s.Save(ctx, conv, 0))

	winner, err := s.Load(ctx, "chat:1")
	require.NoError(t, err)
	loser, err := s.Load(ctx, "chat:1")
	require.NoError(t, err)

	winner.Append(domain.RoleAssistant, "first writer", time.Now().UTC())
	require.NoError(t, s.Save(ctx, winner, 1))

	loser.Append(domain.RoleAssistant, "second writer", time.Now().UTC())
	err = s.Save(ctx, loser, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)

	loaded, err := s.Load(ctx, "chat:1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	require.Len(t, loaded.Turns, 2)
	assert.Equal(t, "first writer", loaded.Turns[1].Text)
}

func TestSessionStore_TurnsAppendOnly(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	conv := newConv("chat:1")
	conv.Append(domain.RoleUser, "q1", time.Now().UTC())
	conv.Append(domain.RoleAssistant, "a1", time.Now().UTC())
	require.NoError(t, s.Save(ctx, conv, 0))

	// Re-saving the same conversation with new turns only inserts
	// the new ones.
	conv.Append(domain.RoleUser, "q2", time.Now().UTC())
	require.NoError(t, s.Save(ctx, conv, 1))

	loaded, err := s.Load(ctx, "chat:1")
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 3)
	assert.Equal(t, []string{"q1", "a1", "q2"}, []string{
		loaded.Turns[0].Text, loaded.Turns[1].Text, loaded.Turns[2].Text,
	})
}

func TestSessionStore_IsolatedConversations(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	a := newConv("100:7")
	a.Append(domain.RoleUser, "from a", time.Now().UTC())
	require.NoError(t, s.Save(ctx, a, 0))

	b := newConv("100:8")
	b.Append(domain.RoleUser, "from b", time.Now().UTC())
	require.NoError(t, s.Save(ctx, b, 0))

	loadedA, err := s.Load(ctx, "100:7")
	require.NoError(t, err)
	require.Len(t, loadedA.Turns, 1)
	assert.Equal(t, "from a", loadedA.Turns[0].Text)

	loadedB, err := s.Load(ctx, "100:8")
	require.NoError(t, err)
	require.Len(t, loadedB.Turns, 1)
	assert.Equal(t, "from b", loadedB.Turns[0].Text)
}

// --- Usage store tests ---

func TestUsageStore_RecordAndQuery(t *testing.T) {
	db := testDB(t)
	u := NewUsageStore(db)
	ctx := context.Background()

	usage := ai.Usage{InputTokens: 10, OutputTokens: 5}
	require.NoError(t, u.RecordUsage(ctx, "chat:1", "gemini-2.0-flash", usage))
	require.NoError(t, u.RecordUsage(ctx, "chat:1", "gemini-2.0-flash", usage))
	require.NoError(t, u.RecordUsage(ctx, "chat:2", "gemini-2.0-flash", usage))

	total, err := u.TotalQueries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	top, err := u.TopConversations(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "chat:1", top[0].ConversationID)
	assert.Equal(t, int64(2), top[0].Queries)

	daily, err := u.DailyCounts(ctx, 7)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(3), daily[0].Queries)
}
