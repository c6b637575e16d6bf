// Package gesture turns hand landmarks into raised-finger counts and motion commands.
package gesture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ayusman/fingerdrive/internal/detector"
)

// ErrInvalidHand is returned when a hand label is neither LEFT nor RIGHT.
var ErrInvalidHand = errors.New("invalid hand")

// Hand identifies a left or right hand.
type Hand int

const (
	// Right is the operator's right hand.
	Right Hand = iota
	// Left is the operator's left hand.
	Left

	numHands
)

// Hands lists both hands in index order.
var Hands = [numHands]Hand{Right, Left}

// ParseHand parses "left" or "right" in any case.
func ParseHand(s string) (Hand, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RIGHT":
		return Right, nil
	case "LEFT":
		return Left, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidHand, s)
}

// Valid reports whether h is Left or Right.
func (h Hand) Valid() bool {
	return h >= Right && h < numHands
}

func (h Hand) String() string {
	switch h {
	case Right:
		return "RIGHT"
	case Left:
		return "LEFT"
	}
	return fmt.Sprintf("Hand(%d)", int(h))
}

// MarshalText encodes the hand as its upper-case name.
func (h Hand) MarshalText() ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHand, int(h))
	}
	return []byte(h.String()), nil
}

// UnmarshalText accepts the same spellings as ParseHand.
func (h *Hand) UnmarshalText(text []byte) error {
	parsed, err := ParseHand(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// handOf maps a provider label to a Hand.
func handOf(lm *detector.HandLandmarks) (Hand, bool) {
	switch {
	case lm.IsRight():
		return Right, true
	case lm.IsLeft():
		return Left, true
	}
	return 0, false
}

// Finger names one of the five digits.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky

	numFingers
)

// Fingers lists all fingers in landmark order.
var Fingers = [numFingers]Finger{Thumb, Index, Middle, Ring, Pinky}

var fingerTips = [numFingers]int{
	Thumb:  detector.ThumbTip,
	Index:  detector.IndexTip,
	Middle: detector.MiddleTip,
	Ring:   detector.RingTip,
	Pinky:  detector.PinkyTip,
}

var fingerNames = [numFingers]string{"THUMB", "INDEX", "MIDDLE", "RING", "PINKY"}

// Tip returns the landmark index of the fingertip.
func (f Finger) Tip() int {
	return fingerTips[f]
}

// Reference returns the landmark index the tip is compared against: two
// joints below the tip (PIP for fingers, MCP for the thumb).
func (f Finger) Reference() int {
	return fingerTips[f] - 2
}

func (f Finger) String() string {
	if f < Thumb || f >= numFingers {
		return fmt.Sprintf("Finger(%d)", int(f))
	}
	return fingerNames[f]
}
