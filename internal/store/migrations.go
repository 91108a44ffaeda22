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
		Name:    "create duels and exchanges",
		SQL: `
			CREATE TABLE duels (
				id          TEXT PRIMARY KEY,
				started_at  TEXT NOT NULL DEFAULT (datetime('now')),
				ended_at    TEXT
			);

			CREATE TABLE exchanges (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				duel_id     TEXT NOT NULL,
				agent       TEXT NOT NULL,
				user_text   TEXT NOT NULL,
				reply       TEXT NOT NULL,
				status      TEXT NOT NULL,
				error       TEXT NOT NULL DEFAULT '',
				elapsed_ms  INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_exchanges_duel ON exchanges (duel_id, id);
			CREATE INDEX idx_exchanges_agent ON exchanges (agent, status);
		`,
	},
	{
		Version: 2,
		Name:    "create broadcasts",
		SQL: `
			CREATE TABLE broadcasts (
				id          TEXT PRIMARY KEY,
				duel_id     TEXT NOT NULL,
				text        TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_broadcasts_duel ON broadcasts (duel_id);
		`,
	},
}
