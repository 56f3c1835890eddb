package track

import (
	"log"
	"sync"

	"github.com/ayusman/strikepoint/internal/detect"
	"github.com/ayusman/strikepoint/internal/geom"
)

// Policy classifies one matched observation for one track. Observe may
// mutate the track's per-policy state (stationary timer, frame counter) and
// returns an impact event when one fired, plus whether the track should be
// retired from the live set.
type Policy interface {
	Observe(tr *Track, det detect.DetectedObject, now float64) (impact *ImpactEvent, retire bool)
}

// postUpdater is implemented by policies that need to see the whole frame's
// detections after matching. The stuck policy uses it to notice removed
// projectiles.
type postUpdater interface {
	afterUpdate(detections []detect.DetectedObject, now float64)
}

// TrajectoryChangePolicy detects bounces. An impact registers when the
// object was moving fast enough before the observation and its velocity
// changed sharply in magnitude or direction. The track keeps going; a
// bouncing object stays in play.
type TrajectoryChangePolicy struct {
	MinImpactVelocity        float64
	VelocityChangeThreshold  float64
	DirectionChangeThreshold float64
}

func (p *TrajectoryChangePolicy) Observe(tr *Track, det detect.DetectedObject, now float64) (*ImpactEvent, bool) {
	prevVelocity := tr.LastDetection.Velocity
	prevSpeed := prevVelocity.Norm()

	if prevSpeed < p.MinImpactVelocity {
		return nil, false
	}

	velocityChange := det.Velocity.Sub(prevVelocity).Norm()
	directionChange := geom.AngleBetween(prevVelocity, det.Velocity)

	if velocityChange < p.VelocityChangeThreshold && directionChange < p.DirectionChangeThreshold {
		return nil, false
	}

	// The bounce happened at the last position before the velocity flipped.
	return &ImpactEvent{
		Position:       tr.LastDetection.Position,
		VelocityBefore: prevVelocity,
		Timestamp:      now,
	}, false
}

// StationaryPolicy detects projectiles that settle. Any observation above
// the speed threshold resets the stationary timer; an impact fires once the
// object has been continuously stationary for the configured duration, and
// the track is retired.
type StationaryPolicy struct {
	VelocityThreshold float64
	Duration          float64
}

func (p *StationaryPolicy) Observe(tr *Track, det detect.DetectedObject, now float64) (*ImpactEvent, bool) {
	if det.Speed() >= p.VelocityThreshold {
		tr.StationarySince = nil
		return nil, false
	}

	if tr.StationarySince == nil {
		since := now
		tr.StationarySince = &since
		return nil, false
	}

	duration := now - *tr.StationarySince
	if duration < p.Duration {
		return nil, false
	}

	return &ImpactEvent{
		Position:           det.Position,
		VelocityBefore:     tr.LastDetection.Velocity,
		Timestamp:          now,
		StationaryDuration: duration,
	}, true
}

// HandledObject records a stuck projectile whose impact has already been
// registered. It exists to keep one embedded dart from re-triggering every
// frame; the list is cleared only by an explicit round reset.
type HandledObject struct {
	Position     geom.Point
	RegisteredAt float64
	TrackID      int64
}

// removedCheckMinAge is how long a handled object must have existed before
// its disappearance counts as a removal rather than detection flicker.
const removedCheckMinAge = 1.0

// StuckPolicy detects projectiles that embed permanently. Confirmation is a
// run of consecutive stationary frames; the refined impact point comes from
// the blob contour, and a dedup list keeps each physical projectile from
// registering more than once. Confirmed tracks keep being tracked but
// cannot re-trigger at that location.
type StuckPolicy struct {
	StationaryThreshold float64
	ConfirmFrames       int
	HandledRadius       float64

	mu              sync.Mutex
	handled         []HandledObject
	cameraCenterX   float64
	hasCameraCenter bool
}

// SetCameraCenterX supplies the camera optical-center x-coordinate used for
// tip disambiguation. Without it the policy falls back to blob centers.
func (p *StuckPolicy) SetCameraCenterX(x float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cameraCenterX = x
	p.hasCameraCenter = true
}

func (p *StuckPolicy) Observe(tr *Track, det detect.DetectedObject, now float64) (*ImpactEvent, bool) {
	if det.Speed() >= p.StationaryThreshold {
		tr.StationaryFrames = 0
		return nil, false
	}

	tr.StationaryFrames++
	if tr.StationaryFrames < p.ConfirmFrames {
		return nil, false
	}

	impactPos := p.impactPoint(det)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isHandledLocked(impactPos) {
		return nil, false
	}

	p.handled = append(p.handled, HandledObject{
		Position:     impactPos,
		RegisteredAt: now,
		TrackID:      tr.ID,
	})
	log.Printf("Registered stuck projectile at (%.0f, %.0f)", impactPos.X, impactPos.Y)

	return &ImpactEvent{
		Position:       impactPos,
		VelocityBefore: tr.LastDetection.Velocity,
		Timestamp:      now,
		// Frame counter converted at a nominal 30 fps.
		StationaryDuration: float64(tr.StationaryFrames) / 30.0,
	}, false
}

// impactPoint estimates the physical impact point from a blob's contour.
// The visual centroid of an elongated embedded projectile is its tail, not
// its tip: with the camera mounted at the surface's horizontal center, a
// blob left of the optical center points rightward into the surface, so its
// rightmost contour point is the tip, and symmetrically for the other side.
// This is a 2D heuristic tied to that camera placement, not reconstruction.
func (p *StuckPolicy) impactPoint(det detect.DetectedObject) geom.Point {
	p.mu.Lock()
	hasCenter := p.hasCameraCenter
	centerX := p.cameraCenterX
	p.mu.Unlock()

	if len(det.Contour) < 3 || !hasCenter {
		log.Printf("Warning: tip estimation unavailable, using blob center (%.0f, %.0f)",
			det.Position.X, det.Position.Y)
		return det.Position
	}

	tip := det.Contour[0]
	if det.Position.X < centerX {
		for _, pt := range det.Contour[1:] {
			if pt.X > tip.X {
				tip = pt
			}
		}
	} else {
		for _, pt := range det.Contour[1:] {
			if pt.X < tip.X {
				tip = pt
			}
		}
	}

	return tip
}

func (p *StuckPolicy) isHandledLocked(pos geom.Point) bool {
	for _, h := range p.handled {
		if geom.Distance(pos, h.Position) < p.HandledRadius {
			return true
		}
	}
	return false
}

// Handled returns a copy of the registered stuck projectiles.
func (p *StuckPolicy) Handled() []HandledObject {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]HandledObject, len(p.handled))
	copy(out, p.handled)
	return out
}

// Reset clears the dedup list. Call on round reset when the operator pulls
// the projectiles out of the target.
func (p *StuckPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.handled) > 0 {
		log.Printf("Cleared %d handled stuck projectiles", len(p.handled))
	}
	p.handled = nil
}

// afterUpdate logs handled projectiles that are no longer visible. A dart
// pulled out of the target produces no game event, but the removal is worth
// a log line for the operator.
func (p *StuckPolicy) afterUpdate(detections []detect.DetectedObject, now float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range p.handled {
		if now-h.RegisteredAt < removedCheckMinAge {
			continue
		}

		visible := false
		for i := range detections {
			if geom.Distance(h.Position, detections[i].Position) < p.HandledRadius {
				visible = true
				break
			}
		}

		if !visible {
			log.Printf("Stuck projectile may have been removed at (%.0f, %.0f)", h.Position.X, h.Position.Y)
		}
	}
}
