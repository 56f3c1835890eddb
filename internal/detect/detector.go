// Package detect provides projectile detection in camera frames. Detectors
// turn a single frame into candidate objects with positions and naive
// velocity estimates; everything longer-lived than one frame belongs to the
// tracking layer.
package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/strikepoint/internal/geom"
)

// DetectedObject represents a detected object in the camera frame.
// Objects are created fresh each frame and discarded after matching.
type DetectedObject struct {
	// Position is the bounding-box center in camera pixel coordinates.
	Position geom.Point
	// Velocity is the estimated velocity in pixels/second. Zero when the
	// object has no previous-frame correspondence.
	Velocity geom.Point
	// Area is the contour area in pixels.
	Area float64
	// Bounds is the axis-aligned bounding box.
	Bounds image.Rectangle
	// Confidence is the detection confidence (0.0-1.0).
	Confidence float64
	// Timestamp is the capture time in seconds.
	Timestamp float64
	// Contour holds the raw contour points when the detector retains them.
	// Used for impact-tip estimation on embedded projectiles.
	Contour []geom.Point
}

// Speed returns the magnitude of the velocity in pixels/second.
func (d DetectedObject) Speed() float64 {
	return d.Velocity.Norm()
}

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect analyzes a frame and returns detected objects. No detections
	// is an empty slice, not an error.
	Detect(frame *gocv.Mat, timestamp float64) ([]DetectedObject, error)

	// Configure validates and atomically applies a settings update.
	Configure(s Settings) error

	// DebugFrame returns the latest visualization frame, or nil when debug
	// mode is off. The detector owns the returned Mat.
	DebugFrame() *gocv.Mat

	// SetDebugMode enables or disables debug frame generation.
	SetDebugMode(enabled bool)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration for the color blob detector.
// HSV color space keeps the threshold stable under lighting changes.
type Config struct {
	// HSV color box. Hue is 0-179, saturation and value 0-255 (OpenCV ranges).
	HueMin        int
	HueMax        int
	SaturationMin int
	SaturationMax int
	ValueMin      int
	ValueMax      int

	// Morphological cleanup iterations with a 3x3 kernel.
	ErodeIterations  int
	DilateIterations int

	// Blob area filter in pixels.
	MinArea float64
	MaxArea float64
}

// DefaultConfig returns a Config tuned for red foam darts.
func DefaultConfig() Config {
	return Config{
		HueMin:           0,
		HueMax:           10,
		SaturationMin:    100,
		SaturationMax:    255,
		ValueMin:         100,
		ValueMax:         255,
		ErodeIterations:  2,
		DilateIterations: 2,
		MinArea:          50,
		MaxArea:          5000,
	}
}

// Settings is a partial configuration update. Nil fields keep their current
// values; the whole update is validated before any field is applied.
type Settings struct {
	HueMin        *int
	HueMax        *int
	SaturationMin *int
	SaturationMax *int
	ValueMin      *int
	ValueMax      *int

	ErodeIterations  *int
	DilateIterations *int

	MinArea *float64
	MaxArea *float64
}

// Apply merges the settings into cfg and validates the result.
func (s Settings) Apply(cfg Config) (Config, error) {
	if s.HueMin != nil {
		cfg.HueMin = *s.HueMin
	}
	if s.HueMax != nil {
		cfg.HueMax = *s.HueMax
	}
	if s.SaturationMin != nil {
		cfg.SaturationMin = *s.SaturationMin
	}
	if s.SaturationMax != nil {
		cfg.SaturationMax = *s.SaturationMax
	}
	if s.ValueMin != nil {
		cfg.ValueMin = *s.ValueMin
	}
	if s.ValueMax != nil {
		cfg.ValueMax = *s.ValueMax
	}
	if s.ErodeIterations != nil {
		cfg.ErodeIterations = *s.ErodeIterations
	}
	if s.DilateIterations != nil {
		cfg.DilateIterations = *s.DilateIterations
	}
	if s.MinArea != nil {
		cfg.MinArea = *s.MinArea
	}
	if s.MaxArea != nil {
		cfg.MaxArea = *s.MaxArea
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that all fields are within their legal ranges.
func (c Config) Validate() error {
	if c.HueMin < 0 || c.HueMax > 179 || c.HueMin > c.HueMax {
		return fmt.Errorf("invalid hue range %d-%d", c.HueMin, c.HueMax)
	}
	if c.SaturationMin < 0 || c.SaturationMax > 255 || c.SaturationMin > c.SaturationMax {
		return fmt.Errorf("invalid saturation range %d-%d", c.SaturationMin, c.SaturationMax)
	}
	if c.ValueMin < 0 || c.ValueMax > 255 || c.ValueMin > c.ValueMax {
		return fmt.Errorf("invalid value range %d-%d", c.ValueMin, c.ValueMax)
	}
	if c.ErodeIterations < 0 || c.ErodeIterations > 10 {
		return fmt.Errorf("erode iterations %d out of range 0-10", c.ErodeIterations)
	}
	if c.DilateIterations < 0 || c.DilateIterations > 10 {
		return fmt.Errorf("dilate iterations %d out of range 0-10", c.DilateIterations)
	}
	if c.MinArea < 1 {
		return fmt.Errorf("min area %.0f must be at least 1", c.MinArea)
	}
	if c.MaxArea < c.MinArea {
		return fmt.Errorf("max area %.0f below min area %.0f", c.MaxArea, c.MinArea)
	}
	return nil
}
