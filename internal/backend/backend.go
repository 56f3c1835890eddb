// Package backend orchestrates the detection pipeline: capture a frame,
// detect objects, advance tracking and impact classification, then filter,
// transform, and validate impacts into normalized hit events for the game
// layer. It is one of several swappable detection backends.
package backend

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/strikepoint/internal/calibration"
	"github.com/ayusman/strikepoint/internal/capture"
	"github.com/ayusman/strikepoint/internal/detect"
	"github.com/ayusman/strikepoint/internal/geom"
	"github.com/ayusman/strikepoint/internal/store"
	"github.com/ayusman/strikepoint/internal/track"
)

// HitEvent is a confirmed impact in normalized game coordinates.
// X and Y are in [0,1]; Timestamp is seconds.
type HitEvent struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp float64 `json:"timestamp"`
}

// Config holds the backend's collaborators. Calibration and Store are
// optional: without calibration, coordinates fall back to linear scaling by
// the camera resolution; without a store, hits are not recorded.
type Config struct {
	Camera      capture.Camera
	Detector    detect.Detector
	Tracker     *track.Tracker
	Calibration *calibration.Manager
	Store       *store.Store
}

// Backend runs the per-tick detection pipeline.
//
// Poll is pull-based and single-threaded: the host game loop calls it once
// per tick and must never call it concurrently. All tracking state lives on
// that call path.
type Backend struct {
	config  Config
	tracker *track.Tracker

	// now returns the current time in seconds. Swapped out in tests.
	now func() float64

	mu          sync.RWMutex
	enabled     bool
	debugMode   bool
	debugFrame  *gocv.Mat
	gameTargets []GameTarget
}

// New creates a Backend and, when calibration is available, feeds the
// camera optical center to the stuck policy for tip estimation.
func New(config Config) *Backend {
	b := &Backend{
		config:  config,
		tracker: config.Tracker,
		enabled: true,
		now: func() float64 {
			return float64(time.Now().UnixNano()) / 1e9
		},
	}

	if config.Calibration != nil && config.Calibration.IsCalibrated() {
		if sp, ok := config.Tracker.Policy().(*track.StuckPolicy); ok {
			if center, err := config.Calibration.CameraGeometry(); err == nil {
				sp.SetCameraCenterX(center.X)
			}
		}
	}

	return b
}

// Poll captures one frame and returns the hit events it produced. A missing
// frame is a normal outcome yielding no events; pacing and retry belong to
// the enclosing game loop.
func (b *Backend) Poll() []HitEvent {
	if !b.IsEnabled() {
		return nil
	}

	frame, err := b.config.Camera.ReadFrame()
	if err != nil {
		// No frame this tick.
		return nil
	}
	defer frame.Close()

	now := b.now()

	detections, err := b.config.Detector.Detect(frame, now)
	if err != nil {
		log.Printf("Detection failed: %v", err)
		return nil
	}

	impacts := b.tracker.Update(detections, now)

	var events []HitEvent
	for _, impact := range impacts {
		// The camera sees more than the projected surface; drop impacts
		// landing outside it.
		if !b.isWithinScreenBounds(impact.Position) {
			log.Printf("Filtering out-of-bounds impact at camera (%.0f, %.0f)",
				impact.Position.X, impact.Position.Y)
			continue
		}

		gamePos, ok := b.cameraToGame(impact.Position)
		if !ok {
			continue
		}

		if !isValidCoordinate(gamePos) {
			log.Printf("Rejecting invalid game coordinate (%v, %v)", gamePos.X, gamePos.Y)
			continue
		}

		events = append(events, HitEvent{
			X:         gamePos.X,
			Y:         gamePos.Y,
			Timestamp: impact.Timestamp,
		})
	}

	b.recordHits(events)

	if b.isDebugMode() {
		b.renderDebug(frame, impacts)
	}

	return events
}

// cameraToGame transforms a camera-space point into normalized game
// coordinates. Without a calibration manager it scales linearly by the
// camera resolution. A failed calibrated transform drops the single point.
func (b *Backend) cameraToGame(p geom.Point) (geom.Point, bool) {
	if b.config.Calibration == nil {
		w, h := b.config.Camera.Resolution()
		if w <= 0 || h <= 0 {
			return geom.Point{}, false
		}
		return geom.Point{X: p.X / float64(w), Y: p.Y / float64(h)}, true
	}

	gamePos, err := b.config.Calibration.CameraToGame(p)
	if err != nil {
		log.Printf("Camera-to-game transform failed: %v", err)
		return geom.Point{}, false
	}
	return gamePos, true
}

func (b *Backend) isWithinScreenBounds(p geom.Point) bool {
	if b.config.Calibration == nil {
		return true
	}
	return b.config.Calibration.IsWithinScreenBounds(p)
}

// isValidCoordinate enforces finite coordinates strictly inside the
// normalized [0,1] game square.
func isValidCoordinate(p geom.Point) bool {
	if !p.IsFinite() {
		return false
	}
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// recordHits archives events in the store when one is configured.
func (b *Backend) recordHits(events []HitEvent) {
	if b.config.Store == nil || len(events) == 0 {
		return
	}

	mode := string(b.tracker.Mode())
	for _, e := range events {
		hit := &store.Hit{X: e.X, Y: e.Y, Timestamp: e.Timestamp, Mode: mode}
		if err := b.config.Store.Hits().Create(hit); err != nil {
			log.Printf("Failed to record hit: %v", err)
		}
	}
}

// ResetRound clears stuck-mode dedup state so a cleared target can accept
// the same positions again.
func (b *Backend) ResetRound() {
	b.tracker.ResetHandled()
}

// SetEnabled enables or disables polling. A disabled backend returns no
// events and touches no state.
func (b *Backend) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// IsEnabled returns whether the backend is processing frames.
func (b *Backend) IsEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// Info returns a human-readable summary of the backend configuration.
func (b *Backend) Info() map[string]string {
	w, h := b.config.Camera.Resolution()
	calibrated := "no"
	if b.config.Calibration != nil && b.config.Calibration.IsCalibrated() {
		calibrated = "yes"
	}

	return map[string]string{
		"backend":    "object_detection",
		"mode":       string(b.tracker.Mode()),
		"camera":     fmt.Sprintf("%dx%d", w, h),
		"calibrated": calibrated,
	}
}
