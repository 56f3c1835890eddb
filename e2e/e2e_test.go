// Package e2e exercises the full detection pipeline: mock camera frames
// through the scripted detector, tracker, calibration, and store, the way
// the polling loop drives it in production.
package e2e

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/strikepoint/internal/backend"
	"github.com/ayusman/strikepoint/internal/calibration"
	"github.com/ayusman/strikepoint/internal/capture"
	"github.com/ayusman/strikepoint/internal/detect"
	"github.com/ayusman/strikepoint/internal/geom"
	"github.com/ayusman/strikepoint/internal/store"
	"github.com/ayusman/strikepoint/internal/track"
)

func testCalibration(t *testing.T) *calibration.Manager {
	t.Helper()

	m := calibration.NewManager()
	err := m.Load(&calibration.Data{
		Version:             "1.0",
		CalibrationTime:     time.Now(),
		CameraResolution:    calibration.Resolution{Width: 1280, Height: 720},
		ProjectorResolution: calibration.Resolution{Width: 1920, Height: 1080},
		HomographyCameraToProjector: calibration.Homography{
			{1.5, 0, 0},
			{0, 1.5, 0},
			{0, 0, 1},
		},
		Quality:     calibration.Quality{ReprojectionErrorRMS: 1.1, InlierRatio: 0.92},
		MarkerCount: 9,
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return m
}

func TestPipeline_StationaryBallBecomesOneHit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	frame := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	defer frame.Close()

	camera := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	if err := camera.Open(); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer camera.Close()

	// A ball settles at the camera frame center and stays there.
	detector := detect.NewMockDetector()
	script := make([][]detect.DetectedObject, 200)
	for i := range script {
		script[i] = []detect.DetectedObject{{
			Position: geom.Point{X: 640, Y: 360},
			Velocity: geom.Point{X: 1, Y: 0},
		}}
	}
	detector.SetScript(script)

	cfg := track.DefaultConfig()
	cfg.Mode = track.ModeStationary
	tracker, err := track.New(cfg)
	if err != nil {
		t.Fatalf("track.New() error: %v", err)
	}

	st, err := store.New(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	defer st.Close()

	b := backend.New(backend.Config{
		Camera:      camera,
		Detector:    detector,
		Tracker:     tracker,
		Calibration: testCalibration(t),
		Store:       st,
	})

	// Poll at 100 Hz until the stationary duration elapses.
	start := time.Now()
	var events []backend.HitEvent
	for time.Since(start) < time.Second {
		events = append(events, b.Poll()...)
		if len(events) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	e := events[0]
	if math.Abs(e.X-0.5) > 1e-9 || math.Abs(e.Y-0.5) > 1e-9 {
		t.Errorf("hit at (%v, %v), want (0.5, 0.5)", e.X, e.Y)
	}

	// The impact fires only after the full stationary duration.
	elapsed := time.Since(start).Seconds()
	if elapsed < cfg.ImpactDuration {
		t.Errorf("impact after %.3fs, want at least %.3fs stationary", elapsed, cfg.ImpactDuration)
	}

	// The operator picks the ball up; the retired track produces nothing
	// further.
	detector.SetScript(nil)
	for i := 0; i < 20; i++ {
		if extra := b.Poll(); len(extra) != 0 {
			t.Fatalf("got %d extra events after the hit", len(extra))
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The hit is archived with its mode.
	stored, err := st.Hits().Recent(10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d stored hits, want 1", len(stored))
	}
	if stored[0].Mode != string(track.ModeStationary) {
		t.Errorf("stored mode = %q, want %q", stored[0].Mode, track.ModeStationary)
	}
	if math.Abs(stored[0].X-0.5) > 1e-9 {
		t.Errorf("stored x = %v, want 0.5", stored[0].X)
	}
}

func TestPipeline_BounceProducesImmediateHit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	frame := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	defer frame.Close()

	camera := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	if err := camera.Open(); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer camera.Close()

	// A dart flies in, reverses off the surface, and flies out.
	detector := detect.NewMockDetector()
	detector.SetScript([][]detect.DetectedObject{
		{{Position: geom.Point{X: 600, Y: 360}, Velocity: geom.Point{X: 400, Y: 0}}},
		{{Position: geom.Point{X: 640, Y: 360}, Velocity: geom.Point{X: 400, Y: 0}}},
		{{Position: geom.Point{X: 620, Y: 360}, Velocity: geom.Point{X: -300, Y: 0}}},
	})

	cfg := track.DefaultConfig()
	cfg.Mode = track.ModeTrajectoryChange
	tracker, err := track.New(cfg)
	if err != nil {
		t.Fatalf("track.New() error: %v", err)
	}

	b := backend.New(backend.Config{
		Camera:      camera,
		Detector:    detector,
		Tracker:     tracker,
		Calibration: testCalibration(t),
	})

	var events []backend.HitEvent
	for i := 0; i < 3; i++ {
		events = append(events, b.Poll()...)
		time.Sleep(5 * time.Millisecond)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	// The hit lands at the pre-bounce position, camera (640, 360), which
	// the calibration maps to the game center.
	e := events[0]
	if math.Abs(e.X-0.5) > 1e-9 || math.Abs(e.Y-0.5) > 1e-9 {
		t.Errorf("hit at (%v, %v), want (0.5, 0.5)", e.X, e.Y)
	}
}
