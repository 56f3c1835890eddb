package detect

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/strikepoint/internal/geom"
)

// velocityMatchDistance is the maximum distance in pixels between a
// detection and a previous-frame detection for velocity estimation.
const velocityMatchDistance = 200.0

// ColorBlobDetector detects colored objects using HSV color filtering.
// Optimized for foam darts but configurable for any colored projectile.
type ColorBlobDetector struct {
	mu     sync.Mutex
	config Config

	// Previous frame detections for velocity estimation.
	prevDetections []DetectedObject
	prevTimestamp  float64
	hasPrev        bool

	debugMode  bool
	debugFrame *gocv.Mat
}

// NewColorBlobDetector creates a detector with the given configuration.
func NewColorBlobDetector(config Config) (*ColorBlobDetector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("color blob config: %w", err)
	}
	return &ColorBlobDetector{config: config}, nil
}

// Detect finds colored blobs in a BGR frame and estimates their velocities
// against the previous frame's detections.
func (d *ColorBlobDetector) Detect(frame *gocv.Mat, timestamp float64) ([]DetectedObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, nil
	}

	cfg := d.config

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	lower := gocv.NewScalar(float64(cfg.HueMin), float64(cfg.SaturationMin), float64(cfg.ValueMin), 0)
	upper := gocv.NewScalar(float64(cfg.HueMax), float64(cfg.SaturationMax), float64(cfg.ValueMax), 0)
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)

	if cfg.ErodeIterations > 0 || cfg.DilateIterations > 0 {
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
		defer kernel.Close()

		for i := 0; i < cfg.ErodeIterations; i++ {
			gocv.Erode(mask, &mask, kernel)
		}
		for i := 0; i < cfg.DilateIterations; i++ {
			gocv.Dilate(mask, &mask, kernel)
		}
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var detections []DetectedObject

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area < cfg.MinArea || area > cfg.MaxArea {
			continue
		}

		rect := gocv.BoundingRect(contour)
		center := geom.Point{
			X: float64(rect.Min.X) + float64(rect.Dx())/2,
			Y: float64(rect.Min.Y) + float64(rect.Dy())/2,
		}

		velocity := d.estimateVelocity(center, timestamp)

		points := contour.ToPoints()
		contourPoints := make([]geom.Point, len(points))
		for j, p := range points {
			contourPoints[j] = geom.NewPointFrom(p)
		}

		detections = append(detections, DetectedObject{
			Position: center,
			Velocity: velocity,
			Area:     area,
			Bounds:   rect,
			// Binary segmentation carries no graded confidence.
			Confidence: 1.0,
			Timestamp:  timestamp,
			Contour:    contourPoints,
		})
	}

	d.prevDetections = detections
	d.prevTimestamp = timestamp
	d.hasPrev = true

	if d.debugMode {
		d.renderDebugFrame(frame, &mask, detections)
	}

	return detections, nil
}

// estimateVelocity matches the center against the closest previous-frame
// detection within the gate and differentiates position over the frame gap.
// First-frame and unmatched detections get zero velocity.
func (d *ColorBlobDetector) estimateVelocity(center geom.Point, timestamp float64) geom.Point {
	if !d.hasPrev || timestamp <= d.prevTimestamp {
		return geom.Point{}
	}

	var closest *DetectedObject
	minDist := velocityMatchDistance
	for i := range d.prevDetections {
		dist := geom.Distance(center, d.prevDetections[i].Position)
		if dist < minDist {
			minDist = dist
			closest = &d.prevDetections[i]
		}
	}
	if closest == nil {
		return geom.Point{}
	}

	dt := timestamp - d.prevTimestamp
	return geom.Point{
		X: (center.X - closest.Position.X) / dt,
		Y: (center.Y - closest.Position.Y) / dt,
	}
}

// renderDebugFrame draws detections next to the threshold mask.
func (d *ColorBlobDetector) renderDebugFrame(frame *gocv.Mat, mask *gocv.Mat, detections []DetectedObject) {
	overlay := frame.Clone()
	defer overlay.Close()

	green := color.RGBA{G: 255}
	red := color.RGBA{R: 255}
	blue := color.RGBA{B: 255}

	for _, obj := range detections {
		gocv.Rectangle(&overlay, obj.Bounds, green, 2)

		cx, cy := int(obj.Position.X), int(obj.Position.Y)
		gocv.Circle(&overlay, image.Pt(cx, cy), 5, red, -1)

		speed := obj.Speed()
		if speed > 1.0 {
			// Scale the velocity vector down so it fits on screen.
			const scale = 0.1
			end := image.Pt(cx+int(obj.Velocity.X*scale), cy+int(obj.Velocity.Y*scale))
			gocv.ArrowedLine(&overlay, image.Pt(cx, cy), end, blue, 2)
		}

		info := fmt.Sprintf("Area: %.0f Speed: %.1fpx/s", obj.Area, speed)
		gocv.PutText(&overlay, info, image.Pt(obj.Bounds.Min.X, obj.Bounds.Min.Y-10),
			gocv.FontHersheySimplex, 0.5, green, 1)
	}

	maskBGR := gocv.NewMat()
	defer maskBGR.Close()
	gocv.CvtColor(*mask, &maskBGR, gocv.ColorGrayToBGR)

	combined := gocv.NewMat()
	gocv.Hconcat(overlay, maskBGR, &combined)

	white := color.RGBA{R: 255, G: 255, B: 255}
	gocv.PutText(&combined, "Detection", image.Pt(10, 30), gocv.FontHersheySimplex, 1, white, 2)
	gocv.PutText(&combined, "Mask", image.Pt(combined.Cols()/2+10, 30), gocv.FontHersheySimplex, 1, white, 2)

	if d.debugFrame != nil {
		d.debugFrame.Close()
	}
	d.debugFrame = &combined
}

// Configure validates and atomically applies a settings update. An invalid
// update leaves the current configuration untouched.
func (d *ColorBlobDetector) Configure(s Settings) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg, err := s.Apply(d.config)
	if err != nil {
		return fmt.Errorf("configure detector: %w", err)
	}
	d.config = cfg
	return nil
}

// Config returns a copy of the current configuration.
func (d *ColorBlobDetector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// DebugFrame returns the latest debug frame, or nil when debug mode is off.
func (d *ColorBlobDetector) DebugFrame() *gocv.Mat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.debugFrame
}

// SetDebugMode enables or disables debug frame generation.
func (d *ColorBlobDetector) SetDebugMode(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.debugMode = enabled
	if !enabled && d.debugFrame != nil {
		d.debugFrame.Close()
		d.debugFrame = nil
	}
}

// Close releases detector resources.
func (d *ColorBlobDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.debugFrame != nil {
		d.debugFrame.Close()
		d.debugFrame = nil
	}
	return nil
}
