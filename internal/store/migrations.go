package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and turns",
		SQL: `
			CREATE TABLE conversations (
				id            TEXT PRIMARY KEY,
				version       INTEGER NOT NULL,
				last_activity TEXT NOT NULL,
				created_at    TEXT NOT NULL
			);

			CREATE TABLE turns (
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				seq             INTEGER NOT NULL,
				role            TEXT NOT NULL,
				text            TEXT NOT NULL,
				timestamp       TEXT NOT NULL,
				PRIMARY KEY (conversation_id, seq)
			);

			CREATE INDEX idx_turns_conversation ON turns (conversation_id, seq);
		`,
	},
	{
		Version: 2,
		Name:    "create ai usage",
		SQL: `
			CREATE TABLE ai_usage (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id TEXT NOT NULL,
				model           TEXT NOT NULL DEFAULT '',
				input_tokens    INTEGER NOT NULL DEFAULT 0,
				output_tokens   INTEGER NOT NULL DEFAULT 0,
				created_at      TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_usage_conversation ON ai_usage (conversation_id);
			CREATE INDEX idx_usage_created ON ai_usage (created_at);
		`,
	},
}
