// Package overlay draws the motion label, frame rate and hand skeletons onto
// camera frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/fingerdrive/internal/detector"
	"github.com/ayusman/fingerdrive/internal/gesture"
	"gocv.io/x/gocv"
)

// Label placement and style.
const (
	labelMargin    = 20
	labelBaseline  = 40
	fpsLabelWidth  = 125
	labelScale     = 1.0
	labelThickness = 2
	jointRadius    = 2
	boneThickness  = 2
	jointThickness = 2
	labelFont      = gocv.FontHersheySimplex
)

var (
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	jointColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	boneColor  = color.RGBA{R: 33, G: 33, B: 33, A: 0}
)

// Config controls what the annotator draws.
type Config struct {
	// DrawLandmarks enables the joint and bone overlay for every detected hand.
	DrawLandmarks bool
}

// Annotator draws onto frames in place.
type Annotator struct {
	config Config
}

// NewAnnotator creates an Annotator.
func NewAnnotator(config Config) *Annotator {
	return &Annotator{config: config}
}

// Annotate writes "MOTION: <name>" at the top left and "FPS: <n>" at the top
// right of img, then the hand skeletons when enabled.
func (a *Annotator) Annotate(img *gocv.Mat, motion gesture.Motion, fps int, hands []detector.HandLandmarks) {
	if img == nil || img.Empty() {
		return
	}

	if a.config.DrawLandmarks {
		for i := range hands {
			drawHand(img, &hands[i])
		}
	}

	gocv.PutText(img, MotionLabel(motion), image.Pt(labelMargin, labelBaseline),
		labelFont, labelScale, labelColor, labelThickness)
	gocv.PutText(img, FPSLabel(fps), image.Pt(img.Cols()-fpsLabelWidth, labelBaseline),
		labelFont, labelScale, labelColor, labelThickness)
}

// MotionLabel is the text drawn for a motion.
func MotionLabel(m gesture.Motion) string {
	return "MOTION: " + m.String()
}

// FPSLabel is the text drawn for a frame rate.
func FPSLabel(fps int) string {
	return fmt.Sprintf("FPS: %d", fps)
}

func drawHand(img *gocv.Mat, hand *detector.HandLandmarks) {
	cols, rows := img.Cols(), img.Rows()

	for _, c := range detector.Connections {
		gocv.Line(img, toPixel(hand.Points[c[0]], cols, rows), toPixel(hand.Points[c[1]], cols, rows),
			boneColor, boneThickness)
	}
	for _, p := range hand.Points {
		gocv.Circle(img, toPixel(p, cols, rows), jointRadius, jointColor, jointThickness)
	}
}

// toPixel maps a normalized landmark to pixel coordinates, clamped to the image.
func toPixel(p detector.Point3D, cols, rows int) image.Point {
	x := int(p.X * float64(cols))
	y := int(p.Y * float64(rows))
	return image.Pt(clamp(x, 0, cols-1), clamp(y, 0, rows-1))
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
