package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/strikepoint/internal/calibration"
)

// CalibrationRecord is one archived calibration, stored as the full JSON
// document alongside the query-friendly quality columns.
type CalibrationRecord struct {
	ID          string
	Data        *calibration.Data
	RMSError    float64
	MarkerCount int
	CreatedAt   time.Time
}

// CalibrationRepository archives calibration records.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Create archives a calibration record.
func (r *CalibrationRepository) Create(data *calibration.Data) (*CalibrationRecord, error) {
	doc, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	rec := &CalibrationRecord{
		ID:          uuid.NewString(),
		Data:        data,
		RMSError:    data.Quality.ReprojectionErrorRMS,
		MarkerCount: data.MarkerCount,
		CreatedAt:   time.Now(),
	}

	_, err = r.db.Exec(
		`INSERT INTO calibrations (id, document, rms_error, marker_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(doc), rec.RMSError, rec.MarkerCount, rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Latest returns the most recently archived calibration.
func (r *CalibrationRepository) Latest() (*CalibrationRecord, error) {
	rec := &CalibrationRecord{}
	var doc string

	err := r.db.QueryRow(
		`SELECT id, document, rms_error, marker_count, created_at
		 FROM calibrations ORDER BY created_at DESC LIMIT 1`,
	).Scan(&rec.ID, &doc, &rec.RMSError, &rec.MarkerCount, &rec.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec.Data = &calibration.Data{}
	if err := json.Unmarshal([]byte(doc), rec.Data); err != nil {
		return nil, err
	}

	return rec, nil
}

// Prune keeps only the most recent keep records.
func (r *CalibrationRepository) Prune(keep int) error {
	_, err := r.db.Exec(
		`DELETE FROM calibrations WHERE id NOT IN
		 (SELECT id FROM calibrations ORDER BY created_at DESC LIMIT ?)`,
		keep,
	)
	return err
}
