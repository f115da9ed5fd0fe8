package database

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL DEFAULT '',
	month TEXT NOT NULL,
	lat REAL NOT NULL DEFAULT 0,
	lng REAL NOT NULL DEFAULT 0,
	street_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_incidents_month_lat_lng ON incidents(month, lat, lng);

CREATE TABLE IF NOT EXISTS fetch_cache (
	location_key TEXT NOT NULL,
	month TEXT NOT NULL,
	lat REAL NOT NULL,
	lng REAL NOT NULL,
	record_count INTEGER NOT NULL DEFAULT 0 CHECK (record_count >= 0),
	fetched_at TEXT NOT NULL,
	PRIMARY KEY (location_key, month)
);
`

// migrations contains incremental schema changes, applied in order from the
// current user_version. migrations[0] is empty because version 0 uses the
// base schema.
var migrations = []string{
	"",
}
