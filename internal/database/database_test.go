package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.November, 3, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "crimedb.db"), zerolog.Nop(), WithClock(clockwork.NewFakeClockAt(testNow)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_MigratesSchema(t *testing.T) {
	db := newTestDB(t)

	var version int
	require.NoError(t, db.handler.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, len(migrations), version)

	for _, table := range []string{"incidents", "fetch_cache"} {
		var name string
		err := db.handler.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestNewDB_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crimedb.db")

	db, err := NewDB(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = db.handler.Exec("INSERT INTO incidents (id, month) VALUES ('a', '2023-05')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(path, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.handler.QueryRow("SELECT COUNT(*) FROM incidents").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestDB_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crimedb.db")

	db, err := NewDB(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = db.handler.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewDB(path, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}
