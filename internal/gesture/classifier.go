package gesture

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/fingerdrive/internal/detector"
)

// MaxCount is the upper bound of a hand's raised-finger count.
const MaxCount = 5

// ErrNoHandDetected marks a frame in which no usable hand was found.
// It is informational: the frame still classifies as MotionNone.
var ErrNoHandDetected = errors.New("no hand detected")

// FingerStatus records which fingers are raised on each hand.
type FingerStatus [numHands][numFingers]bool

// Raised reports whether finger f on hand h is raised.
func (s FingerStatus) Raised(h Hand, f Finger) bool {
	return s[h][f]
}

// MarshalJSON encodes the status as {"RIGHT":{"THUMB":true,...},"LEFT":{...}}.
func (s FingerStatus) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]bool, numHands)
	for _, h := range Hands {
		fingers := make(map[string]bool, numFingers)
		for _, f := range Fingers {
			fingers[f.String()] = s[h][f]
		}
		out[h.String()] = fingers
	}
	return json.Marshal(out)
}

// Count holds the raised-finger count of each hand, each in [0,MaxCount].
type Count [numHands]int

// Of returns the count for hand h.
func (c Count) Of(h Hand) int {
	return c[h]
}

// MarshalJSON encodes the counts as {"RIGHT":n,"LEFT":m}.
func (c Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int{
		Right.String(): c[Right],
		Left.String():  c[Left],
	})
}

// Result is the classification of a single frame.
type Result struct {
	Status     FingerStatus `json:"fingers"`
	Count      Count        `json:"count"`
	Controller Hand         `json:"controller"`
	Motion     Motion       `json:"motion"`
	// Hands is the number of hands that contributed to Count (0, 1 or 2).
	Hands int `json:"hands"`
}

// Err returns ErrNoHandDetected when no hand contributed to the result.
func (r Result) Err() error {
	if r.Hands == 0 {
		return ErrNoHandDetected
	}
	return nil
}

// Config configures a Classifier.
type Config struct {
	// Controller is the hand whose count selects the motion.
	Controller Hand
}

// Classifier maps landmarks to finger counts and a motion. It holds no
// per-frame state, so one Classifier may be shared by any number of loops.
type Classifier struct {
	controller Hand
}

// NewClassifier creates a Classifier for the configured controller hand.
func NewClassifier(cfg Config) (*Classifier, error) {
	if !cfg.Controller.Valid() {
		return nil, fmt.Errorf("controller: %w: %d", ErrInvalidHand, int(cfg.Controller))
	}
	return &Classifier{controller: cfg.Controller}, nil
}

// Controller returns the hand whose count drives the motion.
func (c *Classifier) Controller() Hand {
	return c.controller
}

// Classify counts raised fingers on each detected hand and derives the motion
// from the controller hand's count.
//
// At most one hand per label is used. When the provider reports several hands
// with the same label the one with the highest score wins, ties going to the
// first reported. Hands with any other label are ignored.
func (c *Classifier) Classify(hands []detector.HandLandmarks) Result {
	r := Result{Controller: c.controller}

	for _, h := range Hands {
		lm := selectHand(hands, h)
		if lm == nil {
			continue
		}
		r.Hands++

		for _, f := range Fingers {
			if !isRaised(h, f, lm) {
				continue
			}
			r.Status[h][f] = true
			if r.Count[h] < MaxCount {
				r.Count[h]++
			}
		}
	}

	r.Motion = MotionFor(r.Count[c.controller])
	return r
}

// selectHand picks the best-scoring hand carrying label h.
func selectHand(hands []detector.HandLandmarks, h Hand) *detector.HandLandmarks {
	var best *detector.HandLandmarks
	for i := range hands {
		label, ok := handOf(&hands[i])
		if !ok || label != h {
			continue
		}
		if best == nil || hands[i].Score > best.Score {
			best = &hands[i]
		}
	}
	return best
}

// isRaised compares a fingertip with the joint two positions below it.
// Fingers are raised when the tip is higher on screen (smaller Y). The thumb
// folds sideways, so it compares X instead: a right thumb is raised when the
// tip is left of its MCP joint and a left thumb when it is to the right.
func isRaised(h Hand, f Finger, lm *detector.HandLandmarks) bool {
	tip := lm.Points[f.Tip()]
	ref := lm.Points[f.Reference()]

	if f != Thumb {
		return tip.Y < ref.Y
	}
	if h == Right {
		return tip.X < ref.X
	}
	return tip.X > ref.X
}
