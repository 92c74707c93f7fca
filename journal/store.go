package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("peephole.journal")

// Store is a fold journal backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the journal database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS folds (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		owner   TEXT NOT NULL,
		name    TEXT NOT NULL,
		desc    TEXT NOT NULL,
		kind    TEXT NOT NULL,
		site    INTEGER NOT NULL,
		removed INTEGER NOT NULL,
		literal TEXT NOT NULL,
		at      INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: creating table: %w", err)
	}

	log.Debugf("opened %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts e.
func (s *Store) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO folds (session, owner, name, desc, kind, site, removed, literal, at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.Session, e.Owner, e.Name, e.Desc, e.Kind, e.Site, e.Removed, e.Literal, e.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("journal: recording fold: %w", err)
	}
	return nil
}

// Entries returns the recorded folds, oldest first. An empty session
// selects every session.
func (s *Store) Entries(session string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "SELECT session, owner, name, desc, kind, site, removed, literal, at FROM folds"
	var args []any
	if session != "" {
		query += " WHERE session = ?"
		args = append(args, session)
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: querying folds: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.Session, &e.Owner, &e.Name, &e.Desc, &e.Kind, &e.Site, &e.Removed, &e.Literal, &at); err != nil {
			return nil, fmt.Errorf("journal: scanning fold: %w", err)
		}
		e.At = time.Unix(0, at)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: reading folds: %w", err)
	}
	return entries, nil
}

// Sessions returns the distinct session IDs with their fold counts.
func (s *Store) Sessions() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT session, COUNT(*) FROM folds GROUP BY session")
	if err != nil {
		return nil, fmt.Errorf("journal: querying sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("journal: scanning session: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
