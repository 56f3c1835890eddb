// Package calibration holds the camera/projector calibration record and the
// coordinate transforms built on it. The record itself is produced upstream
// by a marker-detection and homography-solving step; this package only
// loads, validates, and applies it.
package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/strikepoint/internal/geom"
)

// Resolution is a pixel width and height pair.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Homography is a 3x3 planar projective transform, row-major.
type Homography [3][3]float64

// Quality describes how well the solved homography fits its marker
// correspondences.
type Quality struct {
	ReprojectionErrorRMS float64 `json:"reprojection_error_rms"`
	ReprojectionErrorMax float64 `json:"reprojection_error_max"`
	NumInliers           int     `json:"num_inliers"`
	NumTotalPoints       int     `json:"num_total_points"`
	InlierRatio          float64 `json:"inlier_ratio"`
}

// Acceptable reports whether the calibration meets the quality thresholds.
func (q Quality) Acceptable() bool {
	return q.ReprojectionErrorRMS < 3.0 && q.InlierRatio > 0.8
}

// Data is the complete persisted calibration record.
//
// ScreenBounds is the camera-space quadrilateral covering the projected
// surface. Files written before the field existed omit it; the manager
// computes it once from the homography at load time.
type Data struct {
	Version         string    `json:"version"`
	CalibrationTime time.Time `json:"calibration_time"`

	CameraResolution    Resolution `json:"camera_resolution"`
	ProjectorResolution Resolution `json:"projector_resolution"`

	HomographyCameraToProjector Homography `json:"homography_camera_to_projector"`
	Quality                     Quality    `json:"quality"`
	MarkerCount                 int        `json:"marker_count"`

	ScreenBounds *geom.Quad `json:"screen_bounds,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// Validate checks the record is usable for transforms.
func (d *Data) Validate() error {
	if d.CameraResolution.Width <= 0 || d.CameraResolution.Height <= 0 {
		return fmt.Errorf("invalid camera resolution %dx%d", d.CameraResolution.Width, d.CameraResolution.Height)
	}
	if d.ProjectorResolution.Width <= 0 || d.ProjectorResolution.Height <= 0 {
		return fmt.Errorf("invalid projector resolution %dx%d", d.ProjectorResolution.Width, d.ProjectorResolution.Height)
	}
	return nil
}

// LoadData reads a calibration record from a JSON file.
func LoadData(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("calibration %s: %w", path, err)
	}

	return &d, nil
}

// Save writes the record as indented JSON, creating parent directories.
func (d *Data) Save(path string) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode calibration: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create calibration dir: %w", err)
		}
	}

	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	return nil
}
