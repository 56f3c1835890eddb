package detect

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// Color sampling constants
const (
	// samplerDiffThreshold is the binary threshold for frame differencing.
	samplerDiffThreshold = 25
	// samplerMinArea and samplerMaxArea bound the size of a moving region
	// that counts as a projectile.
	samplerMinArea = 100
	samplerMaxArea = 5000
	// samplerMinSaturation rejects white and gray regions; projectiles are
	// expected to be saturated colors.
	samplerMinSaturation = 50
	// samplerCooldown is the minimum time in seconds between samples so one
	// projectile crossing the frame is not sampled dozens of times.
	samplerCooldown = 0.3
	// sampleRadius is the half-size of the HSV sampling window around a
	// moving blob's center.
	sampleRadius = 5
)

// Padding applied around the sampled HSV range. Thresholding needs slack
// around the observed values to survive lighting variation.
const (
	huePadding        = 10
	saturationPadding = 30
	valuePadding      = 30
)

// ColorSampler captures the HSV color of moving objects using frame
// differencing. It drives the interactive color setup step: the operator
// fires a few projectiles across a blank screen and the sampler derives a
// detector color range from what it saw.
type ColorSampler struct {
	mu          sync.Mutex
	prevGray    gocv.Mat
	initialized bool

	hues        []float64
	saturations []float64
	values      []float64
	lastSample  float64
}

// NewColorSampler creates an empty sampler.
func NewColorSampler() *ColorSampler {
	return &ColorSampler{
		prevGray:   gocv.NewMat(),
		lastSample: -samplerCooldown,
	}
}

// Sample processes one BGR frame. It returns the total number of samples
// collected and whether this frame contributed one.
//
// The first frame only establishes the differencing baseline.
func (s *ColorSampler) Sample(frame *gocv.Mat, timestamp float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame == nil || frame.Empty() {
		return len(s.hues), false
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)

	if !s.initialized {
		gray.CopyTo(&s.prevGray)
		s.initialized = true
		return len(s.hues), false
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, s.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, samplerDiffThreshold, 255, gocv.ThresholdBinary)

	gray.CopyTo(&s.prevGray)

	if timestamp-s.lastSample < samplerCooldown {
		return len(s.hues), false
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(*frame, &hsv, gocv.ColorBGRToHSV)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	sampled := false
	for i := 0; i < contours.Size() && !sampled; i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area <= samplerMinArea || area >= samplerMaxArea {
			continue
		}

		rect := gocv.BoundingRect(contour)
		cx := rect.Min.X + rect.Dx()/2
		cy := rect.Min.Y + rect.Dy()/2

		window := image.Rect(cx-sampleRadius, cy-sampleRadius, cx+sampleRadius, cy+sampleRadius)
		window = window.Intersect(image.Rect(0, 0, hsv.Cols(), hsv.Rows()))
		if window.Empty() {
			continue
		}

		region := hsv.Region(window)
		mean := region.Mean()
		region.Close()

		if mean.Val2 <= samplerMinSaturation {
			continue
		}

		s.hues = append(s.hues, mean.Val1)
		s.saturations = append(s.saturations, mean.Val2)
		s.values = append(s.values, mean.Val3)
		s.lastSample = timestamp
		sampled = true
	}

	return len(s.hues), sampled
}

// Settings derives a padded detector color range from the collected samples.
// It needs at least two samples; ok is false otherwise.
func (s *ColorSampler) Settings() (Settings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.hues) < 2 {
		return Settings{}, false
	}

	hueMin := clampInt(int(floats.Min(s.hues))-huePadding, 0, 179)
	hueMax := clampInt(int(floats.Max(s.hues))+huePadding, 0, 179)
	satMin := clampInt(int(floats.Min(s.saturations))-saturationPadding, 0, 255)
	satMax := clampInt(int(floats.Max(s.saturations))+saturationPadding, 0, 255)
	valMin := clampInt(int(floats.Min(s.values))-valuePadding, 0, 255)
	// Always allow fully bright objects.
	valMax := 255

	return Settings{
		HueMin:        &hueMin,
		HueMax:        &hueMax,
		SaturationMin: &satMin,
		SaturationMax: &satMax,
		ValueMin:      &valMin,
		ValueMax:      &valMax,
	}, true
}

// Count returns the number of samples collected so far.
func (s *ColorSampler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hues)
}

// Reset clears all samples and the differencing baseline.
func (s *ColorSampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hues = nil
	s.saturations = nil
	s.values = nil
	s.lastSample = -samplerCooldown
	s.initialized = false
}

// Close releases resources used by the sampler.
func (s *ColorSampler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prevGray.Empty() {
		s.prevGray.Close()
		s.prevGray = gocv.NewMat()
	}
	s.initialized = false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
