package backend

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/strikepoint/internal/geom"
	"github.com/ayusman/strikepoint/internal/track"
)

// GameTarget is a game-space overlay drawn on the debug frame so the
// operator can see where the game expects hits. X, Y, and Radius are in
// normalized game coordinates.
type GameTarget struct {
	X      float64
	Y      float64
	Radius float64
	Color  color.RGBA
}

// SetGameTargets sets the targets drawn on the debug visualization.
func (b *Backend) SetGameTargets(targets []GameTarget) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gameTargets = targets
}

// SetDebugMode enables or disables debug visualization on the backend and
// its detector. The visualization is observational only.
func (b *Backend) SetDebugMode(enabled bool) {
	b.mu.Lock()
	b.debugMode = enabled
	if !enabled && b.debugFrame != nil {
		b.debugFrame.Close()
		b.debugFrame = nil
	}
	b.mu.Unlock()

	b.config.Detector.SetDebugMode(enabled)
}

func (b *Backend) isDebugMode() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.debugMode
}

// DebugFrame returns a copy of the latest composited debug frame, or nil
// when debug mode is off or nothing has been rendered yet. The caller owns
// the returned Mat and must Close it.
func (b *Backend) DebugFrame() *gocv.Mat {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.debugFrame == nil || b.debugFrame.Empty() {
		return nil
	}
	clone := b.debugFrame.Clone()
	return &clone
}

// renderDebug composites the detector overlay, per-track markers, impact
// markers, and calibrated game-target overlays into one frame.
func (b *Backend) renderDebug(frame *gocv.Mat, impacts []track.ImpactEvent) {
	var debug gocv.Mat
	if df := b.config.Detector.DebugFrame(); df != nil && !df.Empty() {
		debug = df.Clone()
	} else {
		debug = frame.Clone()
	}

	orange := color.RGBA{R: 255, G: 165}
	cyan := color.RGBA{G: 255, B: 255}
	red := color.RGBA{R: 255}
	white := color.RGBA{R: 255, G: 255, B: 255}

	for _, tr := range b.tracker.Tracks() {
		pos := tr.LastDetection.Position
		pt := image.Pt(int(pos.X), int(pos.Y))

		// Orange for stationary tracks, cyan for moving.
		c := cyan
		if tr.StationarySince != nil || tr.StationaryFrames > 0 {
			c = orange
		}

		gocv.Circle(&debug, pt, 8, c, 2)
		gocv.PutText(&debug, fmt.Sprintf("ID:%d", tr.ID), image.Pt(pt.X+10, pt.Y),
			gocv.FontHersheySimplex, 0.5, c, 1)
	}

	for _, impact := range impacts {
		pt := image.Pt(int(impact.Position.X), int(impact.Position.Y))
		gocv.Circle(&debug, pt, 15, red, 3)
		gocv.PutText(&debug, "IMPACT", image.Pt(pt.X-30, pt.Y-20),
			gocv.FontHersheySimplex, 0.6, red, 2)
	}

	b.drawGameTargets(&debug, white)

	b.mu.Lock()
	if b.debugFrame != nil {
		b.debugFrame.Close()
	}
	b.debugFrame = &debug
	b.mu.Unlock()
}

// drawGameTargets projects game-space targets back into camera space via
// the calibration chain and draws them. Targets are skipped silently when
// no calibration is loaded or a transform fails.
func (b *Backend) drawGameTargets(debug *gocv.Mat, c color.RGBA) {
	if b.config.Calibration == nil {
		return
	}

	b.mu.RLock()
	targets := b.gameTargets
	b.mu.RUnlock()

	for _, target := range targets {
		projPos, err := b.config.Calibration.GameToProjector(geom.Point{X: target.X, Y: target.Y})
		if err != nil {
			return
		}
		camPos, err := b.config.Calibration.ProjectorToCamera(projPos)
		if err != nil {
			return
		}

		// Radius is normalized; scale to a visible pixel size.
		radius := int(target.Radius * 50)
		if radius < 2 {
			radius = 2
		}

		col := target.Color
		if col == (color.RGBA{}) {
			col = c
		}
		gocv.Circle(debug, image.Pt(int(camPos.X), int(camPos.Y)), radius, col, 2)
	}
}
