package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := openDBAt(filepath.Join(t.TempDir(), "test-journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestOpen_CreatesSchema(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "data"))
	require.NoError(t, err)
	defer db.Close()

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='actions'").Scan(&name))
	assert.Equal(t, "actions", name)

	var version string
	require.NoError(t, db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version))
	assert.Equal(t, "2", version)
	assert.FileExists(t, filepath.Join(dir, "data", DBName))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.db")
	db, err := openDBAt(path)
	require.NoError(t, err)
	s := NewStore(db)
	_, err = s.Record(Action{Folder: "/a", Name: "x.jpg", Kind: ActionBin})
	require.NoError(t, err)
	db.Close()

	db, err = openDBAt(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := NewStore(db).List("/a", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMigrate_V1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := openDBAt(path)
	require.NoError(t, err)
	// rebuild a v1 layout by hand
	for _, stmt := range []string{
		`DROP TABLE actions`,
		`CREATE TABLE actions (id INTEGER PRIMARY KEY AUTOINCREMENT, folder TEXT NOT NULL, name TEXT NOT NULL, action TEXT NOT NULL, at INTEGER NOT NULL)`,
		`INSERT INTO actions (folder, name, action, at) VALUES ('/a', 'old.jpg', 'edit', 1)`,
		`UPDATE meta SET value = '1' WHERE key = 'schema_version'`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	db.Close()

	db, err = openDBAt(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := NewStore(db).List("/a", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old.jpg", got[0].Name)
	assert.Equal(t, "", got[0].Dst)

	var version string
	require.NoError(t, db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version))
	assert.Equal(t, "2", version)
}

func TestRecord_AndList(t *testing.T) {
	s := setupTestStore(t)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.Record(Action{Folder: "/shoot", Name: "a.jpg", Kind: ActionEdit, Dst: "/shoot/edit/a.jpg", At: base})
	require.NoError(t, err)
	_, err = s.Record(Action{Folder: "/shoot", Name: "b.jpg", Kind: ActionBin, At: base.Add(time.Second)})
	require.NoError(t, err)
	_, err = s.Record(Action{Folder: "/other", Name: "c.jpg", Kind: ActionBin, At: base.Add(2 * time.Second)})
	require.NoError(t, err)

	got, err := s.List("/shoot", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.jpg", got[0].Name)
	assert.Equal(t, "a.jpg", got[1].Name)
	assert.Equal(t, "/shoot/edit/a.jpg", got[1].Dst)
	assert.True(t, got[1].At.Equal(base))

	all, err := s.List("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "c.jpg", all[0].Name)

	limited, err := s.List("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecord_DefaultsTime(t *testing.T) {
	s := setupTestStore(t)
	before := time.Now()
	_, err := s.Record(Action{Folder: "/a", Name: "x.jpg", Kind: ActionEdit})
	require.NoError(t, err)

	got, err := s.List("/a", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].At.Before(before))
}

func TestRecord_UnknownKind(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Record(Action{Folder: "/a", Name: "x.jpg", Kind: "rename"})
	assert.Error(t, err)
}

func TestCounts(t *testing.T) {
	s := setupTestStore(t)
	for _, k := range []string{ActionBin, ActionBin, ActionEdit} {
		_, err := s.Record(Action{Folder: "/a", Name: "x.jpg", Kind: k})
		require.NoError(t, err)
	}
	_, err := s.Record(Action{Folder: "/b", Name: "y.jpg", Kind: ActionBin})
	require.NoError(t, err)

	counts, err := s.Counts("/a")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{ActionEdit: 1, ActionBin: 2}, counts)

	counts, err = s.Counts("/empty")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{ActionEdit: 0, ActionBin: 0}, counts)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	db, err := openDBAt(path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE meta SET value = '99' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	db.Close()

	_, err = openDBAt(path)
	assert.ErrorContains(t, err, "newer than this build")
}

func TestOpen_WALMode(t *testing.T) {
	db, err := openDBAt(filepath.Join(t.TempDir(), "wal.db"))
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_DataDirWithURIChars(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shoot?day#1 50%")
	db, err := Open(dir)
	require.NoError(t, err)
	_, err = NewStore(db).Record(Action{Folder: "/a", Name: "x.jpg", Kind: ActionEdit})
	require.NoError(t, err)
	db.Close()

	assert.FileExists(t, filepath.Join(dir, DBName))

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()
	got, err := NewStore(db).List("/a", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}
