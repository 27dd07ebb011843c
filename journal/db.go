// Package journal records culling decisions in a SQLite database so a
// session can be reviewed after the fact.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ghyeongl/photocull/logging"
)

// migrations[i] upgrades a version-i database to version i+1. Each step
// runs in its own transaction together with the version bump.
var migrations = [][]string{
	{
		`CREATE TABLE actions (
		    id     INTEGER PRIMARY KEY AUTOINCREMENT,
		    folder TEXT NOT NULL,
		    name   TEXT NOT NULL,
		    action TEXT NOT NULL,
		    at     INTEGER NOT NULL
		)`,
	},
	// v2 records where the file went
	{
		`ALTER TABLE actions ADD COLUMN dst TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX IF NOT EXISTS actions_folder ON actions(folder, at)`,
	},
}

// DBName is the journal file name inside the data directory.
const DBName = "journal.db"

func sub(component string) *slog.Logger { return logging.Sub(component) }

// Open opens (or creates) the journal database inside dataDir.
func Open(dataDir string) (*sql.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return openDBAt(filepath.Join(dataDir, DBName))
}

func openDBAt(dbPath string) (*sql.DB, error) {
	l := sub("db")
	l.Info("opening journal", "path", dbPath)

	db, err := sql.Open("sqlite", dsnFor(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := upgrade(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("upgrade schema: %w", err)
	}
	return db, nil
}

// dsnFor builds a file: URI for dbPath, escaping characters such as '?' and
// '#' that would otherwise end the path.
func dsnFor(dbPath string) string {
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(dbPath),
		RawQuery: "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
	}
	return u.String()
}

func schemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create meta: %w", err)
	}
	var v int
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func upgrade(db *sql.DB) error {
	l := sub("db")
	from, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if from > len(migrations) {
		return fmt.Errorf("journal schema v%d is newer than this build (v%d)", from, len(migrations))
	}
	if from == len(migrations) {
		l.Debug("schema up to date", slog.Int("version", from))
		return nil
	}

	for v := from; v < len(migrations); v++ {
		if err := applyStep(db, v+1, migrations[v]); err != nil {
			return fmt.Errorf("v%d→v%d: %w", v, v+1, err)
		}
	}
	l.Info("schema upgraded", "from", from, "to", len(migrations))
	return nil
}

func applyStep(db *sql.DB, to int, stmts []string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, to); err != nil {
		return err
	}
	return tx.Commit()
}
