// Package track maintains frame-to-frame object tracks over a detection
// stream and classifies impacts. Objects carry no persistent identity
// beyond nearest-neighbor correspondence; a track lives exactly as long as
// each poll cycle finds a detection for it.
package track

import (
	"fmt"

	"github.com/ayusman/strikepoint/internal/detect"
	"github.com/ayusman/strikepoint/internal/geom"
)

// matchDistance is the association gate in pixels: a detection further than
// this from a track's last position can never continue that track.
const matchDistance = 100.0

// historyWindow is the length in seconds of the velocity history kept per track.
const historyWindow = 1.0

// Mode selects which impact classification policy a Tracker runs.
type Mode string

const (
	// ModeTrajectoryChange detects bounces: sharp velocity or direction
	// changes while the object keeps moving.
	ModeTrajectoryChange Mode = "trajectory_change"
	// ModeStationary detects projectiles that settle: continuously slow for
	// a configured duration.
	ModeStationary Mode = "stationary"
	// ModeStuck detects projectiles that embed permanently (darts, arrows)
	// and stay visible after impact.
	ModeStuck Mode = "stuck"
)

// ImpactEvent is the discrete moment a tracked projectile is judged to have
// struck the surface, in camera pixel coordinates.
type ImpactEvent struct {
	Position       geom.Point
	VelocityBefore geom.Point
	Timestamp      float64
	// StationaryDuration is how long the object was stationary before the
	// impact fired. Zero for trajectory-change impacts.
	StationaryDuration float64
}

// VelocitySample is one entry of a track's velocity history.
type VelocitySample struct {
	Timestamp float64
	Velocity  geom.Point
}

// Track is the identity-preserving association of detections across frames
// for one physical object.
type Track struct {
	// ID is unique and strictly increasing for the lifetime of the Tracker.
	ID int64
	// LastDetection is the most recent matched detection.
	LastDetection detect.DetectedObject
	// StationarySince is when the object last became stationary, or nil
	// while it is moving. Used by the stationary policy.
	StationarySince *float64
	// StationaryFrames counts consecutive stationary frames. Used by the
	// stuck policy.
	StationaryFrames int
	// History is a rolling window of the last second of velocity samples.
	History []VelocitySample
}

// Config holds tracker and impact policy parameters.
type Config struct {
	Mode Mode

	// Stationary mode: speed in px/s below which the object counts as
	// stationary, and how long it must stay below before an impact fires.
	ImpactVelocityThreshold float64
	ImpactDuration          float64

	// Trajectory change mode: minimum pre-impact speed, and the velocity
	// magnitude change (px/s) or direction change (degrees) that registers
	// a bounce.
	MinImpactVelocity        float64
	VelocityChangeThreshold  float64
	DirectionChangeThreshold float64

	// Stuck mode: coarser stationary speed threshold (px/s), consecutive
	// frames needed to confirm, and the dedup radius (px) around an
	// already-registered embedded projectile.
	StuckStationaryThreshold float64
	StuckConfirmFrames       int
	HandledRadius            float64

	// MaxTrackingGap is carried in the configuration but is not consulted
	// by the matcher, which drops a track the first cycle no detection
	// matches it. Kept so persisted configs round-trip.
	MaxTrackingGap float64
}

// DefaultConfig returns tracker parameters tuned for foam darts.
func DefaultConfig() Config {
	return Config{
		Mode:                     ModeTrajectoryChange,
		ImpactVelocityThreshold:  10.0,
		ImpactDuration:           0.15,
		MinImpactVelocity:        50.0,
		VelocityChangeThreshold:  100.0,
		DirectionChangeThreshold: 90.0,
		StuckStationaryThreshold: 5.0,
		StuckConfirmFrames:       3,
		HandledRadius:            30.0,
		MaxTrackingGap:           0.5,
	}
}

// Tracker matches detections to tracks and runs one impact policy.
//
// Not safe for concurrent use: Update must only be called from the single
// polling goroutine.
type Tracker struct {
	config Config
	policy Policy
	tracks map[int64]*Track
	nextID int64
}

// New creates a Tracker with the policy selected by config.Mode.
func New(config Config) (*Tracker, error) {
	var policy Policy

	switch config.Mode {
	case ModeTrajectoryChange:
		policy = &TrajectoryChangePolicy{
			MinImpactVelocity:        config.MinImpactVelocity,
			VelocityChangeThreshold:  config.VelocityChangeThreshold,
			DirectionChangeThreshold: config.DirectionChangeThreshold,
		}
	case ModeStationary:
		policy = &StationaryPolicy{
			VelocityThreshold: config.ImpactVelocityThreshold,
			Duration:          config.ImpactDuration,
		}
	case ModeStuck:
		policy = &StuckPolicy{
			StationaryThreshold: config.StuckStationaryThreshold,
			ConfirmFrames:       config.StuckConfirmFrames,
			HandledRadius:       config.HandledRadius,
		}
	default:
		return nil, fmt.Errorf("unknown impact mode %q", config.Mode)
	}

	return &Tracker{
		config: config,
		policy: policy,
		tracks: make(map[int64]*Track),
	}, nil
}

// Mode returns the configured impact mode.
func (t *Tracker) Mode() Mode {
	return t.config.Mode
}

// Policy returns the tracker's impact policy.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Update matches the frame's detections against live tracks, advances the
// impact policy for every matched track, spawns tracks for unmatched
// detections, and drops tracks that matched nothing this cycle.
//
// Association is greedy: each track claims its closest unclaimed detection
// inside the gate, in map iteration order. Two tracks contending for one
// detection resolve by order, not by global cost.
func (t *Tracker) Update(detections []detect.DetectedObject, now float64) []ImpactEvent {
	var impacts []ImpactEvent

	claimed := make(map[int]bool)
	next := make(map[int64]*Track)

	for id, tr := range t.tracks {
		detIdx := -1
		minDist := matchDistance

		for i := range detections {
			if claimed[i] {
				continue
			}
			dist := geom.Distance(detections[i].Position, tr.LastDetection.Position)
			if dist < minDist {
				minDist = dist
				detIdx = i
			}
		}

		if detIdx < 0 {
			// No match this cycle: the track is gone.
			continue
		}
		claimed[detIdx] = true
		det := detections[detIdx]

		impact, retire := t.policy.Observe(tr, det, now)
		if impact != nil {
			impacts = append(impacts, *impact)
		}

		tr.LastDetection = det
		tr.History = append(tr.History, VelocitySample{Timestamp: now, Velocity: det.Velocity})
		tr.History = pruneHistory(tr.History, now)

		if !retire {
			next[id] = tr
		}
	}

	// Unclaimed detections become new tracks.
	for i := range detections {
		if claimed[i] {
			continue
		}
		tr := &Track{
			ID:            t.nextID,
			LastDetection: detections[i],
			History: []VelocitySample{
				{Timestamp: now, Velocity: detections[i].Velocity},
			},
		}
		next[tr.ID] = tr
		t.nextID++
	}

	t.tracks = next

	if pu, ok := t.policy.(postUpdater); ok {
		pu.afterUpdate(detections, now)
	}

	return impacts
}

// Tracks returns the live track set. The returned map is the tracker's own;
// callers must treat it as read-only and not retain it across Update calls.
func (t *Tracker) Tracks() map[int64]*Track {
	return t.tracks
}

// ResetHandled clears stuck-mode dedup state. Call on round reset when the
// operator clears the target. A no-op for the other modes.
func (t *Tracker) ResetHandled() {
	if sp, ok := t.policy.(*StuckPolicy); ok {
		sp.Reset()
	}
}

// pruneHistory drops samples older than the history window.
func pruneHistory(history []VelocitySample, now float64) []VelocitySample {
	cut := 0
	for cut < len(history) && now-history[cut].Timestamp >= historyWindow {
		cut++
	}
	if cut == 0 {
		return history
	}
	return append(history[:0], history[cut:]...)
}
