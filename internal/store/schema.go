package store

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY
);`

const schemaProgress = `
CREATE TABLE IF NOT EXISTS progress (
	item_id TEXT NOT NULL,
	episode_id TEXT NOT NULL DEFAULT '',
	position_seconds REAL NOT NULL CHECK (position_seconds >= 0),
	duration_seconds REAL NOT NULL CHECK (duration_seconds >= 0),
	finished INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL,
	needs_upload INTEGER NOT NULL DEFAULT 0,
	server_position REAL,
	last_synced_at INTEGER,
	PRIMARY KEY (item_id, episode_id)
);`

const schemaProgressIndexes = `
CREATE INDEX IF NOT EXISTS idx_progress_needs_upload ON progress(needs_upload);
CREATE INDEX IF NOT EXISTS idx_progress_updated_at ON progress(updated_at DESC);
`

const schemaDownloads = `
CREATE TABLE IF NOT EXISTS downloads (
	item_id TEXT NOT NULL,
	episode_id TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	downloaded_at INTEGER NOT NULL,
	PRIMARY KEY (item_id, episode_id)
);`

const schemaSyncState = `
CREATE TABLE IF NOT EXISTS sync_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			schemaProgress,
			schemaDownloads,
			schemaSyncState,
		},
	},
	{
		version: 2,
		statements: []string{
			schemaProgressIndexes,
		},
	},
}
