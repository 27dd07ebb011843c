package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ghyeongl/photocull/logging"
)

// Action kinds.
const (
	ActionEdit = "edit"
	ActionBin  = "bin"
)

// Action is one recorded culling decision.
type Action struct {
	ID     int64     `json:"id"`
	Folder string    `json:"folder"`
	Name   string    `json:"name"`
	Kind   string    `json:"action"`
	Dst    string    `json:"dst,omitempty"`
	At     time.Time `json:"at"`
}

// Store reads and writes the journal.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record appends a to the journal and returns its id. A zero At is set to now.
func (s *Store) Record(a Action) (int64, error) {
	if a.Kind != ActionEdit && a.Kind != ActionBin {
		return 0, fmt.Errorf("record: unknown action %q", a.Kind)
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO actions (folder, name, action, dst, at) VALUES (?, ?, ?, ?, ?)
	`, a.Folder, a.Name, a.Kind, a.Dst, a.At.UnixNano())
	if err != nil {
		sub("store").Error("Record failed", "folder", a.Folder, "name", a.Name, "err", err)
		return 0, fmt.Errorf("record action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record action: %w", err)
	}
	sub("store").Debug("Record", "id", id, "folder", a.Folder, "name", a.Name, "action", a.Kind)
	return id, nil
}

// List returns the newest actions first. An empty folder lists every
// folder; limit <= 0 means no limit.
func (s *Store) List(folder string, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, folder, name, action, dst, at FROM actions
		WHERE ? = '' OR folder = ?
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, folder, folder, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var a Action
		var at int64
		if err := rows.Scan(&a.ID, &a.Folder, &a.Name, &a.Kind, &a.Dst, &at); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.At = time.Unix(0, at)
		out = append(out, a)
	}
	if logging.Enabled(slog.LevelDebug) {
		sub("store").Debug("List", "folder", folder, "count", len(out))
	}
	return out, rows.Err()
}

// Counts returns the number of actions of each kind recorded for folder.
func (s *Store) Counts(folder string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT action, COUNT(*) FROM actions WHERE folder = ? GROUP BY action
	`, folder)
	if err != nil {
		return nil, fmt.Errorf("count actions: %w", err)
	}
	defer rows.Close()

	out := map[string]int{ActionEdit: 0, ActionBin: 0}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}
