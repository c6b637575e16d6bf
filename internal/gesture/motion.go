package gesture

import "fmt"

// Motion is the drive command derived from the controller hand.
type Motion int

const (
	MotionNone Motion = iota
	MotionForward
	MotionBackward
	MotionRight
	MotionLeft
)

// motionByCount is indexed by the controller hand's finger count.
var motionByCount = [MaxCount + 1]Motion{
	0: MotionNone,
	1: MotionForward,
	2: MotionBackward,
	3: MotionRight,
	4: MotionLeft,
	5: MotionNone,
}

// MotionFor returns the motion for a raised-finger count. Counts outside
// [0,5] yield MotionNone.
func MotionFor(count int) Motion {
	if count < 0 || count > MaxCount {
		return MotionNone
	}
	return motionByCount[count]
}

// Symbol returns the byte written to the vehicle for this motion.
func (m Motion) Symbol() byte {
	switch m {
	case MotionForward:
		return 'F'
	case MotionBackward:
		return 'B'
	case MotionRight:
		return 'R'
	case MotionLeft:
		return 'L'
	}
	return ' '
}

func (m Motion) String() string {
	switch m {
	case MotionNone:
		return "NONE"
	case MotionForward:
		return "FORWARD"
	case MotionBackward:
		return "BACKWARD"
	case MotionRight:
		return "RIGHT"
	case MotionLeft:
		return "LEFT"
	}
	return fmt.Sprintf("Motion(%d)", int(m))
}

// MarshalText encodes the motion as its name.
func (m Motion) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMotion is the inverse of Motion.String.
func ParseMotion(s string) (Motion, error) {
	for m := MotionNone; m <= MotionLeft; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return MotionNone, fmt.Errorf("unknown motion %q", s)
}
