package image

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrImageNotFound indicates the requested image doesn't exist.
var ErrImageNotFound = errors.New("image not found")

// StoreEntry describes a stored image without decoding it.
type StoreEntry struct {
	ID      string
	Name    string
	Objects int
	Created time.Time
}

// Store is a SQLite catalog of images.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenStore opens or creates the catalog at path. ":memory:" gives a
// private in-memory catalog.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening image store: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		id      TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		objects INTEGER NOT NULL,
		created INTEGER NOT NULL,
		data    BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened image store %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores img under a fresh id and returns the id.
func (s *Store) Save(img *Image) (string, error) {
	data, err := Marshal(img)
	if err != nil {
		return "", fmt.Errorf("encoding image: %w", err)
	}
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT INTO images (id, name, objects, created, data) VALUES (?, ?, ?, ?, ?)",
		id, img.Name, len(img.Objects), time.Now().UnixMicro(), data,
	)
	if err != nil {
		return "", fmt.Errorf("saving image: %w", err)
	}

	log.Infof("saved image %q as %s (%d objects)", img.Name, id, len(img.Objects))
	return id, nil
}

// Load retrieves and decodes the image stored under id.
func (s *Store) Load(id string) (*Image, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM images WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, id)
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}
	return Unmarshal(data)
}

// List returns every stored image, oldest first.
func (s *Store) List() ([]StoreEntry, error) {
	rows, err := s.db.Query("SELECT id, name, objects, created FROM images ORDER BY created, id")
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var entries []StoreEntry
	for rows.Next() {
		var e StoreEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.Name, &e.Objects, &created); err != nil {
			return nil, fmt.Errorf("scanning image row: %w", err)
		}
		e.Created = time.UnixMicro(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the image stored under id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	return nil
}
