package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nissyi-gh/flowboard/internal/board"
)

const keyLastProject = "last_project"

// PrefStore keeps per-user board preferences in SQLite.
type PrefStore struct {
	db  *sql.DB
	now func() time.Time
}

func defaultDBPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(dataHome, "flowboard")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "flowboard.db"), nil
}

// NewPrefStore opens (or creates) the SQLite database and ensures the schema exists.
func NewPrefStore(dbPath string) (*PrefStore, error) {
	if dbPath == "" {
		var err error
		dbPath, err = defaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("determine db path: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS prefs (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if err := migrateUpdatedAt(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate updated_at: %w", err)
	}

	return &PrefStore{db: db, now: time.Now}, nil
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func migrateUpdatedAt(db *sql.DB) error {
	ok, err := hasColumn(db, "prefs", "updated_at")
	if err != nil || ok {
		return err
	}
	_, err = db.Exec("ALTER TABLE prefs ADD COLUMN updated_at TEXT")
	return err
}

func (s *PrefStore) get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get pref %s: %w", key, err)
	}
	return v, true, nil
}

func (s *PrefStore) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("set pref %s: %w", key, err)
	}
	return nil
}

func viewKey(projectID string) string { return "view:" + projectID }

// LastView returns the view last used on a project, or the status view.
func (s *PrefStore) LastView(projectID string) (board.View, error) {
	v, ok, err := s.get(viewKey(projectID))
	if err != nil || !ok {
		return board.ViewStatus, err
	}
	return board.ParseView(v), nil
}

func (s *PrefStore) SetLastView(projectID string, v board.View) error {
	return s.set(viewKey(projectID), string(v))
}

// LastProject returns the project opened last, if any.
func (s *PrefStore) LastProject() (string, bool, error) {
	return s.get(keyLastProject)
}

func (s *PrefStore) SetLastProject(projectID string) error {
	return s.set(keyLastProject, projectID)
}

// Close closes the database connection.
func (s *PrefStore) Close() error {
	return s.db.Close()
}
