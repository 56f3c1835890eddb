package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Hit represents one hit event as delivered to the game layer:
// normalized [0,1] coordinates and the detection timestamp in seconds.
type Hit struct {
	ID        string
	X         float64
	Y         float64
	Timestamp float64
	Mode      string
	CreatedAt time.Time
}

// HitRepository provides persistence for hit events.
type HitRepository struct {
	db *sql.DB
}

// Hits returns the hit repository for this store.
func (s *Store) Hits() *HitRepository {
	return &HitRepository{db: s.db}
}

// Create inserts a new hit. A missing ID is filled with a fresh UUID.
func (r *HitRepository) Create(h *Hit) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO hits (id, x, y, timestamp, mode, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.X, h.Y, h.Timestamp, h.Mode, h.CreatedAt,
	)
	return err
}

// Recent retrieves the most recent hits, newest first.
func (r *HitRepository) Recent(limit int) ([]*Hit, error) {
	rows, err := r.db.Query(
		`SELECT id, x, y, timestamp, mode, created_at
		 FROM hits ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []*Hit
	for rows.Next() {
		h := &Hit{}
		if err := rows.Scan(&h.ID, &h.X, &h.Y, &h.Timestamp, &h.Mode, &h.CreatedAt); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}

	return hits, rows.Err()
}

// Count returns the total number of stored hits.
func (r *HitRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM hits`).Scan(&n)
	return n, err
}

// Clear deletes all stored hits.
func (r *HitRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM hits`)
	return err
}
