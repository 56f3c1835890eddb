package calibration

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/strikepoint/internal/geom"
)

// ErrNotCalibrated is returned by transforms requested before a calibration
// record has been loaded. It signals a setup mistake, not a runtime
// condition, so callers should treat it as fatal to the operation.
var ErrNotCalibrated = errors.New("no calibration loaded")

// Manager caches the camera-projector homography and the camera-space
// screen bounds, and performs all coordinate transforms.
//
// Load and the transform methods must not race: the design assumes
// calibration changes only happen while polling is paused.
type Manager struct {
	mu        sync.RWMutex
	data      *Data
	camToProj *mat.Dense
	projToCam *mat.Dense
}

// NewManager creates a Manager with no calibration loaded.
func NewManager() *Manager {
	return &Manager{}
}

// LoadFile loads a persisted calibration record.
func (m *Manager) LoadFile(path string) error {
	data, err := LoadData(path)
	if err != nil {
		return err
	}
	return m.Load(data)
}

// Load installs a calibration record, caching the homography and its
// inverse. When the record predates screen bounds, the bounds are computed
// once here by projecting the projector's corners back into camera space;
// they are immutable afterwards.
func (m *Manager) Load(data *Data) error {
	if err := data.Validate(); err != nil {
		return err
	}

	h := data.HomographyCameraToProjector
	camToProj := mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})

	var projToCam mat.Dense
	if err := projToCam.Inverse(camToProj); err != nil {
		return fmt.Errorf("homography is not invertible: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = data
	m.camToProj = camToProj
	m.projToCam = &projToCam

	if data.ScreenBounds == nil {
		bounds := m.computeScreenBoundsLocked()
		data.ScreenBounds = &bounds
		log.Printf("Screen bounds computed from homography")
	} else {
		log.Printf("Screen bounds loaded from calibration record")
	}

	log.Printf("Calibration loaded: RMS error %.2fpx, acceptable=%v",
		data.Quality.ReprojectionErrorRMS, data.Quality.Acceptable())

	return nil
}

// IsCalibrated reports whether a calibration record is loaded.
func (m *Manager) IsCalibrated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data != nil
}

// CameraToGame transforms a camera pixel coordinate into normalized [0,1]
// game coordinates: through the homography into projector pixels, then
// scaled by the projector resolution.
func (m *Manager) CameraToGame(p geom.Point) (geom.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return geom.Point{}, ErrNotCalibrated
	}

	proj := applyHomography(m.camToProj, p)
	return geom.Point{
		X: proj.X / float64(m.data.ProjectorResolution.Width),
		Y: proj.Y / float64(m.data.ProjectorResolution.Height),
	}, nil
}

// GameToProjector scales normalized game coordinates to projector pixels.
func (m *Manager) GameToProjector(p geom.Point) (geom.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return geom.Point{}, ErrNotCalibrated
	}

	return geom.Point{
		X: p.X * float64(m.data.ProjectorResolution.Width),
		Y: p.Y * float64(m.data.ProjectorResolution.Height),
	}, nil
}

// ProjectorToCamera transforms projector pixels into camera pixels through
// the inverse homography.
func (m *Manager) ProjectorToCamera(p geom.Point) (geom.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return geom.Point{}, ErrNotCalibrated
	}

	return applyHomography(m.projToCam, p), nil
}

// IsWithinScreenBounds reports whether a camera-space point falls on the
// projected surface. Without calibration or bounds the check is permissive:
// everything passes.
func (m *Manager) IsWithinScreenBounds(p geom.Point) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil || m.data.ScreenBounds == nil {
		return true
	}
	return m.data.ScreenBounds.Contains(p)
}

// ScreenBounds returns the camera-space quadrilateral of the projected
// surface, if calibrated.
func (m *Manager) ScreenBounds() (geom.Quad, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil || m.data.ScreenBounds == nil {
		return geom.Quad{}, false
	}
	return *m.data.ScreenBounds, true
}

// CameraGeometry returns the camera optical center, approximated as the
// center of the camera resolution. The stuck-mode tip heuristic keys off
// its x-coordinate.
func (m *Manager) CameraGeometry() (geom.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return geom.Point{}, ErrNotCalibrated
	}

	return geom.Point{
		X: float64(m.data.CameraResolution.Width) / 2,
		Y: float64(m.data.CameraResolution.Height) / 2,
	}, nil
}

// Quality returns the loaded calibration's quality metrics.
func (m *Manager) Quality() (Quality, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return Quality{}, ErrNotCalibrated
	}
	return m.data.Quality, nil
}

// Data returns the loaded calibration record.
func (m *Manager) Data() (*Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, ErrNotCalibrated
	}
	return m.data, nil
}

// computeScreenBoundsLocked projects the projector's four corners back into
// camera space. Caller holds the write lock.
func (m *Manager) computeScreenBoundsLocked() geom.Quad {
	w := float64(m.data.ProjectorResolution.Width)
	h := float64(m.data.ProjectorResolution.Height)

	return geom.Quad{
		TopLeft:     applyHomography(m.projToCam, geom.Point{X: 0, Y: 0}),
		TopRight:    applyHomography(m.projToCam, geom.Point{X: w, Y: 0}),
		BottomRight: applyHomography(m.projToCam, geom.Point{X: w, Y: h}),
		BottomLeft:  applyHomography(m.projToCam, geom.Point{X: 0, Y: h}),
	}
}

// applyHomography maps p through the 3x3 matrix in homogeneous coordinates.
func applyHomography(h *mat.Dense, p geom.Point) geom.Point {
	x := h.At(0, 0)*p.X + h.At(0, 1)*p.Y + h.At(0, 2)
	y := h.At(1, 0)*p.X + h.At(1, 1)*p.Y + h.At(1, 2)
	w := h.At(2, 0)*p.X + h.At(2, 1)*p.Y + h.At(2, 2)

	// w == 0 maps to infinity; downstream coordinate validation rejects it.
	return geom.Point{X: x / w, Y: y / w}
}
