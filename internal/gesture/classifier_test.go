package gesture

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ayusman/fingerdrive/internal/detector"
)

func mustClassifier(t *testing.T, controller Hand) *Classifier {
	t.Helper()
	c, err := NewClassifier(Config{Controller: controller})
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	return c
}

func TestNewClassifier(t *testing.T) {
	t.Run("accepts both hands", func(t *testing.T) {
		for _, h := range Hands {
			c := mustClassifier(t, h)
			if c.Controller() != h {
				t.Errorf("Controller() = %v, want %v", c.Controller(), h)
			}
		}
	})

	t.Run("rejects invalid hand", func(t *testing.T) {
		_, err := NewClassifier(Config{Controller: Hand(7)})
		if !errors.Is(err, ErrInvalidHand) {
			t.Errorf("expected ErrInvalidHand, got %v", err)
		}
	})
}

func TestClassifier_OpenRightHand(t *testing.T) {
	c := mustClassifier(t, Right)

	r := c.Classify([]detector.HandLandmarks{detector.OpenPalmLandmarks(detector.HandednessRight)})

	if r.Count.Of(Right) != 5 {
		t.Errorf("Count[RIGHT] = %d, want 5", r.Count.Of(Right))
	}
	if r.Count.Of(Left) != 0 {
		t.Errorf("Count[LEFT] = %d, want 0", r.Count.Of(Left))
	}
	if r.Motion != MotionNone {
		t.Errorf("Motion = %v, want NONE", r.Motion)
	}
	for _, f := range Fingers {
		if !r.Status.Raised(Right, f) {
			t.Errorf("RIGHT %v should be raised", f)
		}
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestClassifier_IndexOnly(t *testing.T) {
	c := mustClassifier(t, Right)

	r := c.Classify([]detector.HandLandmarks{detector.PointingLandmarks(detector.HandednessRight)})

	if r.Count.Of(Right) != 1 {
		t.Errorf("Count[RIGHT] = %d, want 1", r.Count.Of(Right))
	}
	if r.Motion != MotionForward {
		t.Errorf("Motion = %v, want FORWARD", r.Motion)
	}
	if !r.Status.Raised(Right, Index) {
		t.Error("RIGHT INDEX should be raised")
	}
	for _, f := range []Finger{Thumb, Middle, Ring, Pinky} {
		if r.Status.Raised(Right, f) {
			t.Errorf("RIGHT %v should be lowered", f)
		}
	}
}

func TestClassifier_NoHands(t *testing.T) {
	for _, controller := range Hands {
		t.Run(controller.String(), func(t *testing.T) {
			c := mustClassifier(t, controller)

			for _, hands := range [][]detector.HandLandmarks{nil, {}} {
				r := c.Classify(hands)

				if r.Count != (Count{}) {
					t.Errorf("Count = %v, want zero for both hands", r.Count)
				}
				if r.Motion != MotionNone {
					t.Errorf("Motion = %v, want NONE", r.Motion)
				}
				if r.Status != (FingerStatus{}) {
					t.Errorf("Status = %v, want all lowered", r.Status)
				}
				if !errors.Is(r.Err(), ErrNoHandDetected) {
					t.Errorf("Err() = %v, want ErrNoHandDetected", r.Err())
				}
			}
		})
	}
}

func TestClassifier_MotionPerFingerCount(t *testing.T) {
	tests := []struct {
		name   string
		hand   detector.HandLandmarks
		count  int
		motion Motion
	}{
		{"fist", detector.FistLandmarks(detector.HandednessRight), 0, MotionNone},
		{"index", detector.PoseLandmarks(detector.HandednessRight, false, true, false, false, false), 1, MotionForward},
		{"index middle", detector.PoseLandmarks(detector.HandednessRight, false, true, true, false, false), 2, MotionBackward},
		{"index middle ring", detector.PoseLandmarks(detector.HandednessRight, false, true, true, true, false), 3, MotionRight},
		{"four fingers", detector.PoseLandmarks(detector.HandednessRight, false, true, true, true, true), 4, MotionLeft},
		{"thumb only", detector.PoseLandmarks(detector.HandednessRight, true, false, false, false, false), 1, MotionForward},
		{"open palm", detector.OpenPalmLandmarks(detector.HandednessRight), 5, MotionNone},
	}

	c := mustClassifier(t, Right)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.Classify([]detector.HandLandmarks{tt.hand})
			if r.Count.Of(Right) != tt.count {
				t.Errorf("Count[RIGHT] = %d, want %d", r.Count.Of(Right), tt.count)
			}
			if r.Motion != tt.motion {
				t.Errorf("Motion = %v, want %v", r.Motion, tt.motion)
			}
		})
	}
}

func TestClassifier_ThumbDirectionPerHand(t *testing.T) {
	c := mustClassifier(t, Right)

	t.Run("right thumb raised when tip is left of MCP", func(t *testing.T) {
		hand := detector.PoseLandmarks(detector.HandednessRight, true, false, false, false, false)
		if hand.Points[detector.ThumbTip].X >= hand.Points[detector.ThumbMCP].X {
			t.Fatal("fixture: right thumb tip should have smaller X")
		}
		r := c.Classify([]detector.HandLandmarks{hand})
		if !r.Status.Raised(Right, Thumb) {
			t.Error("RIGHT THUMB should be raised")
		}
	})

	t.Run("left thumb raised when tip is right of MCP", func(t *testing.T) {
		hand := detector.PoseLandmarks(detector.HandednessLeft, true, false, false, false, false)
		if hand.Points[detector.ThumbTip].X <= hand.Points[detector.ThumbMCP].X {
			t.Fatal("fixture: left thumb tip should have larger X")
		}
		r := c.Classify([]detector.HandLandmarks{hand})
		if !r.Status.Raised(Left, Thumb) {
			t.Error("LEFT THUMB should be raised")
		}
	})

	t.Run("right-thumb geometry labelled left is folded", func(t *testing.T) {
		hand := detector.PoseLandmarks(detector.HandednessRight, true, false, false, false, false)
		hand.Handedness = detector.HandednessLeft
		r := c.Classify([]detector.HandLandmarks{hand})
		if r.Status.Raised(Left, Thumb) {
			t.Error("LEFT THUMB should be folded when its tip is left of the MCP")
		}
	})

	t.Run("left-thumb geometry labelled right is folded", func(t *testing.T) {
		hand := detector.PoseLandmarks(detector.HandednessLeft, true, false, false, false, false)
		hand.Handedness = detector.HandednessRight
		r := c.Classify([]detector.HandLandmarks{hand})
		if r.Status.Raised(Right, Thumb) {
			t.Error("RIGHT THUMB should be folded when its tip is right of the MCP")
		}
	})
}

func TestClassifier_ControllerSelectsHand(t *testing.T) {
	hands := []detector.HandLandmarks{
		detector.PoseLandmarks(detector.HandednessRight, false, true, true, false, false), // 2
		detector.PoseLandmarks(detector.HandednessLeft, false, true, true, true, false),   // 3
	}

	right := mustClassifier(t, Right).Classify(hands)
	left := mustClassifier(t, Left).Classify(hands)

	if right.Count != left.Count {
		t.Errorf("counts should not depend on controller: %v vs %v", right.Count, left.Count)
	}
	if right.Motion != MotionBackward {
		t.Errorf("RIGHT controller motion = %v, want BACKWARD", right.Motion)
	}
	if left.Motion != MotionRight {
		t.Errorf("LEFT controller motion = %v, want RIGHT", left.Motion)
	}
	if right.Hands != 2 {
		t.Errorf("Hands = %d, want 2", right.Hands)
	}
}

func TestClassifier_DuplicateLabels(t *testing.T) {
	c := mustClassifier(t, Right)

	low := detector.OpenPalmLandmarks(detector.HandednessRight)
	low.Score = 0.4
	high := detector.PointingLandmarks(detector.HandednessRight)
	high.Score = 0.9

	t.Run("highest score wins", func(t *testing.T) {
		for _, order := range [][]detector.HandLandmarks{{low, high}, {high, low}} {
			r := c.Classify(order)
			if r.Count.Of(Right) != 1 || r.Motion != MotionForward {
				t.Errorf("got count %d motion %v, want 1 FORWARD", r.Count.Of(Right), r.Motion)
			}
			if r.Hands != 1 {
				t.Errorf("Hands = %d, want 1", r.Hands)
			}
		}
	})

	t.Run("ties keep the first reported", func(t *testing.T) {
		first := detector.PointingLandmarks(detector.HandednessRight)
		second := detector.OpenPalmLandmarks(detector.HandednessRight)
		first.Score, second.Score = 0.7, 0.7

		r := c.Classify([]detector.HandLandmarks{first, second})
		if r.Count.Of(Right) != 1 {
			t.Errorf("Count[RIGHT] = %d, want 1 from first hand", r.Count.Of(Right))
		}
	})

	t.Run("unknown labels are ignored", func(t *testing.T) {
		odd := detector.OpenPalmLandmarks(detector.HandednessRight)
		odd.Handedness = "Unknown"

		r := c.Classify([]detector.HandLandmarks{odd})
		if r.Hands != 0 || r.Count != (Count{}) {
			t.Errorf("unknown label contributed: hands %d count %v", r.Hands, r.Count)
		}
	})
}

func TestClassifier_CountNeverExceedsMax(t *testing.T) {
	c := mustClassifier(t, Left)

	var hands []detector.HandLandmarks
	for i := 0; i < 4; i++ {
		hands = append(hands, detector.OpenPalmLandmarks(detector.HandednessLeft))
		hands = append(hands, detector.OpenPalmLandmarks(detector.HandednessRight))
	}

	r := c.Classify(hands)
	for _, h := range Hands {
		if n := r.Count.Of(h); n < 0 || n > MaxCount {
			t.Errorf("Count[%v] = %d, outside [0,%d]", h, n, MaxCount)
		}
	}
}

func TestResult_JSON(t *testing.T) {
	c := mustClassifier(t, Right)
	r := c.Classify([]detector.HandLandmarks{detector.PointingLandmarks(detector.HandednessRight)})

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded struct {
		Fingers    map[string]map[string]bool `json:"fingers"`
		Count      map[string]int             `json:"count"`
		Controller string                     `json:"controller"`
		Motion     string                     `json:"motion"`
		Hands      int                        `json:"hands"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	if decoded.Motion != "FORWARD" || decoded.Controller != "RIGHT" {
		t.Errorf("motion %q controller %q", decoded.Motion, decoded.Controller)
	}
	if decoded.Count["RIGHT"] != 1 || decoded.Count["LEFT"] != 0 {
		t.Errorf("count = %v", decoded.Count)
	}
	if !decoded.Fingers["RIGHT"]["INDEX"] || decoded.Fingers["RIGHT"]["THUMB"] {
		t.Errorf("fingers = %v", decoded.Fingers)
	}
	if len(decoded.Fingers["LEFT"]) != 5 {
		t.Errorf("expected five LEFT entries, got %d", len(decoded.Fingers["LEFT"]))
	}
}
