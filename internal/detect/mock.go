package detect

import (
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It plays back a scripted sequence of per-frame detection results.
type MockDetector struct {
	script [][]DetectedObject
	index  int
	err    error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetScript sets the per-call detection results. Once the script is
// exhausted, Detect returns empty results.
func (m *MockDetector) SetScript(script [][]DetectedObject) {
	m.script = script
	m.index = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the next scripted result or the configured error.
// The frame is ignored; timestamps are stamped onto the returned objects.
func (m *MockDetector) Detect(frame *gocv.Mat, timestamp float64) ([]DetectedObject, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.index >= len(m.script) {
		return nil, nil
	}

	dets := make([]DetectedObject, len(m.script[m.index]))
	copy(dets, m.script[m.index])
	for i := range dets {
		dets[i].Timestamp = timestamp
		if dets[i].Confidence == 0 {
			dets[i].Confidence = 1.0
		}
	}
	m.index++

	return dets, nil
}

// Configure is a no-op that still validates the update.
func (m *MockDetector) Configure(s Settings) error {
	_, err := s.Apply(DefaultConfig())
	return err
}

// DebugFrame always returns nil for the mock detector.
func (m *MockDetector) DebugFrame() *gocv.Mat { return nil }

// SetDebugMode is a no-op for the mock detector.
func (m *MockDetector) SetDebugMode(enabled bool) {}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error { return nil }
