package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// PoseLandmarks returns a palm-facing hand, as seen in a mirrored camera
// image, with each finger either raised or folded.
//
// Raised fingers have their tip above the PIP joint. A raised right thumb
// points toward smaller X than its MCP joint; left hands are the X mirror of
// right hands, so a raised left thumb points toward larger X.
func PoseLandmarks(handedness string, thumb, index, middle, ring, pinky bool) HandLandmarks {
	lm := HandLandmarks{
		Handedness: handedness,
		Score:      0.95,
	}

	lm.Points[Wrist] = Point3D{X: 0.50, Y: 0.85}

	lm.Points[ThumbCMC] = Point3D{X: 0.44, Y: 0.80, Z: -0.01}
	lm.Points[ThumbMCP] = Point3D{X: 0.40, Y: 0.74, Z: -0.02}
	if thumb {
		lm.Points[ThumbIP] = Point3D{X: 0.35, Y: 0.70, Z: -0.03}
		lm.Points[ThumbTip] = Point3D{X: 0.30, Y: 0.66, Z: -0.03}
	} else {
		lm.Points[ThumbIP] = Point3D{X: 0.44, Y: 0.70, Z: -0.04}
		lm.Points[ThumbTip] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	}

	setFinger(&lm, IndexMCP, 0.45, index)
	setFinger(&lm, MiddleMCP, 0.50, middle)
	setFinger(&lm, RingMCP, 0.55, ring)
	setFinger(&lm, PinkyMCP, 0.60, pinky)

	if handedness == HandednessLeft {
		for i := range lm.Points {
			lm.Points[i].X = 1 - lm.Points[i].X
		}
	}

	return lm
}

// setFinger lays out the four joints of a non-thumb finger starting at mcp.
func setFinger(lm *HandLandmarks, mcp int, x float64, raised bool) {
	lm.Points[mcp] = Point3D{X: x, Y: 0.65}
	if raised {
		lm.Points[mcp+1] = Point3D{X: x, Y: 0.55}
		lm.Points[mcp+2] = Point3D{X: x, Y: 0.47}
		lm.Points[mcp+3] = Point3D{X: x, Y: 0.40}
		return
	}
	lm.Points[mcp+1] = Point3D{X: x, Y: 0.58, Z: -0.05}
	lm.Points[mcp+2] = Point3D{X: x, Y: 0.64, Z: -0.04}
	lm.Points[mcp+3] = Point3D{X: x, Y: 0.66, Z: -0.02}
}

// OpenPalmLandmarks returns a hand with all five fingers raised.
func OpenPalmLandmarks(handedness string) HandLandmarks {
	return PoseLandmarks(handedness, true, true, true, true, true)
}

// FistLandmarks returns a hand with every finger folded.
func FistLandmarks(handedness string) HandLandmarks {
	return PoseLandmarks(handedness, false, false, false, false, false)
}

// PointingLandmarks returns a hand with only the index finger raised.
func PointingLandmarks(handedness string) HandLandmarks {
	return PoseLandmarks(handedness, false, true, false, false, false)
}
