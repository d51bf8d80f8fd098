package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrations = fstest.MapFS{
	"m/1_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")},
	"m/1_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
	"m/2_idx.up.sql":       {Data: []byte("CREATE INDEX widgets_name ON widgets (name);")},
	"m/2_idx.down.sql":     {Data: []byte("DROP INDEX widgets_name;")},
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db", dsn("a.db", Options{}))
	assert.Equal(t, "file:a.db?mode=ro&_pragma=busy_timeout(1500)",
		dsn("a.db", Options{ReadOnly: true, BusyTimeout: 1500 * time.Millisecond}))
	assert.Equal(t, "file::memory:?_pragma=busy_timeout(10)", dsn(Memory, Options{BusyTimeout: 10 * time.Millisecond}))
}

func TestPragmas(t *testing.T) {
	got := pragmas(DefaultOptions())
	assert.Contains(t, got, "PRAGMA foreign_keys = ON")
	assert.Contains(t, got, "PRAGMA journal_mode = WAL")
	assert.Contains(t, got, "PRAGMA busy_timeout = 5000")

	ro := DefaultOptions()
	ro.ReadOnly = true
	assert.NotContains(t, pragmas(ro), "PRAGMA journal_mode = WAL")
}

func TestOpenInMemory_MigrateKeepsSchema(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory(ctx)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, testMigrations, "m"))
	require.NoError(t, Migrate(db, testMigrations, "m"))

	_, err = db.ExecContext(ctx, "INSERT INTO widgets (name) VALUES (?)", "x")
	require.NoError(t, err)

	v, dirty, err := Version(db, testMigrations, "m")
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)
}

func TestOpen_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	db, err := Open(ctx, path, DefaultOptions())
	require.NoError(t, err)

	v, _, err := Version(db, testMigrations, "m")
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, Migrate(db, testMigrations, "m"))
	var mode string
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	require.NoError(t, db.Close())

	db, err = Open(ctx, path, DefaultOptions())
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT count(*) FROM widgets").Scan(&n))
	assert.Zero(t, n)
}

func TestMigrate_MissingDir(t *testing.T) {
	db, err := OpenInMemory(context.Background())
	require.NoError(t, err)
	defer db.Close()
	assert.Error(t, Migrate(db, testMigrations, "nope"))
}
