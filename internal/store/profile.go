package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/strikepoint/internal/detect"
)

// ColorProfile is a named detector configuration, so an operator can switch
// between projectile types (red darts, yellow balls) without re-sampling.
type ColorProfile struct {
	ID        string
	Name      string
	Config    detect.Config
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileRepository provides CRUD operations for color profiles.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the color profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

// Save inserts or replaces a profile by name.
func (r *ProfileRepository) Save(p *ColorProfile) error {
	if err := p.Config.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO color_profiles
		 (id, name, hue_min, hue_max, saturation_min, saturation_max,
		  value_min, value_max, erode_iterations, dilate_iterations,
		  min_area, max_area, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		  hue_min=excluded.hue_min, hue_max=excluded.hue_max,
		  saturation_min=excluded.saturation_min, saturation_max=excluded.saturation_max,
		  value_min=excluded.value_min, value_max=excluded.value_max,
		  erode_iterations=excluded.erode_iterations, dilate_iterations=excluded.dilate_iterations,
		  min_area=excluded.min_area, max_area=excluded.max_area,
		  updated_at=excluded.updated_at`,
		p.ID, p.Name,
		p.Config.HueMin, p.Config.HueMax,
		p.Config.SaturationMin, p.Config.SaturationMax,
		p.Config.ValueMin, p.Config.ValueMax,
		p.Config.ErodeIterations, p.Config.DilateIterations,
		p.Config.MinArea, p.Config.MaxArea,
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetByName retrieves a profile by its name.
func (r *ProfileRepository) GetByName(name string) (*ColorProfile, error) {
	p := &ColorProfile{}

	err := r.db.QueryRow(
		`SELECT id, name, hue_min, hue_max, saturation_min, saturation_max,
		        value_min, value_max, erode_iterations, dilate_iterations,
		        min_area, max_area, created_at, updated_at
		 FROM color_profiles WHERE name = ?`,
		name,
	).Scan(&p.ID, &p.Name,
		&p.Config.HueMin, &p.Config.HueMax,
		&p.Config.SaturationMin, &p.Config.SaturationMax,
		&p.Config.ValueMin, &p.Config.ValueMax,
		&p.Config.ErodeIterations, &p.Config.DilateIterations,
		&p.Config.MinArea, &p.Config.MaxArea,
		&p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return p, nil
}

// List retrieves all profiles ordered by name.
func (r *ProfileRepository) List() ([]*ColorProfile, error) {
	rows, err := r.db.Query(
		`SELECT id, name, hue_min, hue_max, saturation_min, saturation_max,
		        value_min, value_max, erode_iterations, dilate_iterations,
		        min_area, max_area, created_at, updated_at
		 FROM color_profiles ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*ColorProfile
	for rows.Next() {
		p := &ColorProfile{}
		if err := rows.Scan(&p.ID, &p.Name,
			&p.Config.HueMin, &p.Config.HueMax,
			&p.Config.SaturationMin, &p.Config.SaturationMax,
			&p.Config.ValueMin, &p.Config.ValueMax,
			&p.Config.ErodeIterations, &p.Config.DilateIterations,
			&p.Config.MinArea, &p.Config.MaxArea,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// Delete removes a profile by name.
func (r *ProfileRepository) Delete(name string) error {
	res, err := r.db.Exec(`DELETE FROM color_profiles WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
