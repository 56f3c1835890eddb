package calibration

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/strikepoint/internal/geom"
)

// testData returns a record whose homography scales camera pixels (1280x720)
// onto projector pixels (1920x1080): a pure 1.5x scale, easy to verify by
// hand.
func testData() *Data {
	return &Data{
		Version:             "1.0",
		CalibrationTime:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CameraResolution:    Resolution{Width: 1280, Height: 720},
		ProjectorResolution: Resolution{Width: 1920, Height: 1080},
		HomographyCameraToProjector: Homography{
			{1.5, 0, 0},
			{0, 1.5, 0},
			{0, 0, 1},
		},
		Quality: Quality{
			ReprojectionErrorRMS: 1.2,
			ReprojectionErrorMax: 2.8,
			NumInliers:           9,
			NumTotalPoints:       10,
			InlierRatio:          0.9,
		},
		MarkerCount: 10,
	}
}

func TestManager_NotCalibrated(t *testing.T) {
	m := NewManager()

	if m.IsCalibrated() {
		t.Error("IsCalibrated() = true before Load")
	}

	if _, err := m.CameraToGame(geom.Point{X: 100, Y: 100}); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("CameraToGame error = %v, want ErrNotCalibrated", err)
	}
	if _, err := m.GameToProjector(geom.Point{X: 0.5, Y: 0.5}); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("GameToProjector error = %v, want ErrNotCalibrated", err)
	}
	if _, err := m.ProjectorToCamera(geom.Point{X: 960, Y: 540}); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("ProjectorToCamera error = %v, want ErrNotCalibrated", err)
	}
	if _, err := m.CameraGeometry(); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("CameraGeometry error = %v, want ErrNotCalibrated", err)
	}

	// Without calibration the bounds check is permissive.
	if !m.IsWithinScreenBounds(geom.Point{X: -5000, Y: 9999}) {
		t.Error("IsWithinScreenBounds should pass everything when not calibrated")
	}
}

func TestManager_CameraToGame(t *testing.T) {
	m := NewManager()
	if err := m.Load(testData()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name string
		cam  geom.Point
		want geom.Point
	}{
		{name: "origin", cam: geom.Point{X: 0, Y: 0}, want: geom.Point{X: 0, Y: 0}},
		{name: "center", cam: geom.Point{X: 640, Y: 360}, want: geom.Point{X: 0.5, Y: 0.5}},
		{name: "far corner", cam: geom.Point{X: 1280, Y: 720}, want: geom.Point{X: 1, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.CameraToGame(tt.cam)
			if err != nil {
				t.Fatalf("CameraToGame() error: %v", err)
			}
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Errorf("CameraToGame(%v) = %v, want %v", tt.cam, got, tt.want)
			}
		})
	}
}

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager()
	if err := m.Load(testData()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// camera -> game -> projector -> camera comes back to the start.
	start := geom.Point{X: 321, Y: 456}

	game, err := m.CameraToGame(start)
	if err != nil {
		t.Fatalf("CameraToGame() error: %v", err)
	}
	proj, err := m.GameToProjector(game)
	if err != nil {
		t.Fatalf("GameToProjector() error: %v", err)
	}
	back, err := m.ProjectorToCamera(proj)
	if err != nil {
		t.Fatalf("ProjectorToCamera() error: %v", err)
	}

	if math.Abs(back.X-start.X) > 1e-6 || math.Abs(back.Y-start.Y) > 1e-6 {
		t.Errorf("round trip %v -> %v -> %v -> %v", start, game, proj, back)
	}
}

func TestManager_ScreenBoundsBackfill(t *testing.T) {
	m := NewManager()
	data := testData()
	if data.ScreenBounds != nil {
		t.Fatal("test record should start without bounds")
	}

	if err := m.Load(data); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	bounds, ok := m.ScreenBounds()
	if !ok {
		t.Fatal("expected bounds after load")
	}

	// With a 1.5x scale homography, the projector area maps exactly onto
	// the camera frame.
	if math.Abs(bounds.TopLeft.X) > 1e-9 || math.Abs(bounds.BottomRight.X-1280) > 1e-9 ||
		math.Abs(bounds.BottomRight.Y-720) > 1e-9 {
		t.Errorf("bounds = %+v, want the full camera frame", bounds)
	}

	// Centroid of the projected surface is on screen; a far point is not.
	if !m.IsWithinScreenBounds(bounds.Centroid()) {
		t.Error("centroid should be within bounds")
	}
	if m.IsWithinScreenBounds(geom.Point{X: 5000, Y: 5000}) {
		t.Error("far point should be outside bounds")
	}
}

func TestManager_ExistingBoundsPreserved(t *testing.T) {
	m := NewManager()
	data := testData()
	data.ScreenBounds = &geom.Quad{
		TopLeft:     geom.Point{X: 10, Y: 10},
		TopRight:    geom.Point{X: 100, Y: 10},
		BottomRight: geom.Point{X: 100, Y: 100},
		BottomLeft:  geom.Point{X: 10, Y: 100},
	}

	if err := m.Load(data); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	bounds, ok := m.ScreenBounds()
	if !ok {
		t.Fatal("expected bounds")
	}
	if bounds.TopLeft != (geom.Point{X: 10, Y: 10}) {
		t.Errorf("bounds were recomputed: %+v", bounds)
	}

	if m.IsWithinScreenBounds(geom.Point{X: 500, Y: 500}) {
		t.Error("point outside the recorded bounds should fail")
	}
}

func TestManager_CameraGeometry(t *testing.T) {
	m := NewManager()
	if err := m.Load(testData()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	center, err := m.CameraGeometry()
	if err != nil {
		t.Fatalf("CameraGeometry() error: %v", err)
	}
	if center != (geom.Point{X: 640, Y: 360}) {
		t.Errorf("CameraGeometry() = %v, want {640 360}", center)
	}
}

func TestManager_SingularHomographyRejected(t *testing.T) {
	m := NewManager()
	data := testData()
	data.HomographyCameraToProjector = Homography{} // all zeros

	if err := m.Load(data); err == nil {
		t.Fatal("expected error for a singular homography")
	}
	if m.IsCalibrated() {
		t.Error("failed load must leave the manager uncalibrated")
	}
}

func TestData_SaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "calibration.json")

	data := testData()
	if err := data.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	m := NewManager()
	if err := m.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	loaded, err := m.Data()
	if err != nil {
		t.Fatalf("Data() error: %v", err)
	}
	if loaded.CameraResolution != data.CameraResolution {
		t.Errorf("camera resolution = %+v, want %+v", loaded.CameraResolution, data.CameraResolution)
	}
	if loaded.HomographyCameraToProjector != data.HomographyCameraToProjector {
		t.Errorf("homography did not round-trip")
	}

	q, err := m.Quality()
	if err != nil {
		t.Fatalf("Quality() error: %v", err)
	}
	if !q.Acceptable() {
		t.Errorf("quality %+v should be acceptable", q)
	}
}

func TestQuality_Acceptable(t *testing.T) {
	tests := []struct {
		name string
		q    Quality
		want bool
	}{
		{
			name: "good",
			q:    Quality{ReprojectionErrorRMS: 1.0, InlierRatio: 0.95},
			want: true,
		},
		{
			name: "rms too high",
			q:    Quality{ReprojectionErrorRMS: 3.0, InlierRatio: 0.95},
			want: false,
		},
		{
			name: "inlier ratio too low",
			q:    Quality{ReprojectionErrorRMS: 1.0, InlierRatio: 0.8},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Acceptable(); got != tt.want {
				t.Errorf("Acceptable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestData_ValidateRejectsBadResolutions(t *testing.T) {
	data := testData()
	data.CameraResolution.Width = 0
	if err := data.Validate(); err == nil {
		t.Error("expected error for zero camera width")
	}

	data = testData()
	data.ProjectorResolution.Height = -1
	if err := data.Validate(); err == nil {
		t.Error("expected error for negative projector height")
	}
}
