// Package pipeline runs the capture, detect, classify, annotate and forward
// stages once per frame. Both the web server and the desktop window consume it.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/fingerdrive/internal/capture"
	"github.com/ayusman/fingerdrive/internal/detector"
	"github.com/ayusman/fingerdrive/internal/forwarder"
	"github.com/ayusman/fingerdrive/internal/gesture"
	"github.com/ayusman/fingerdrive/internal/overlay"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Fatal stage failures. Each stops Run and is returned to the caller.
var (
	ErrCameraUnavailable    = errors.New("camera unavailable")
	ErrDetectorUnavailable  = errors.New("landmark provider unavailable")
	ErrTransportUnavailable = errors.New("serial transport unavailable")
)

// Journal records motion changes. Failures are logged and never stop the loop.
type Journal interface {
	RecordMotion(m gesture.Motion, count int, at time.Time) error
}

// Config holds per-pipeline options.
type Config struct {
	// Mirror flips every frame horizontally before detection.
	Mirror bool
}

// Deps are the stages a Pipeline drives. Camera, Detector and Classifier are
// required; the rest default to no-ops.
type Deps struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Classifier *gesture.Classifier
	Annotator  *overlay.Annotator
	Forwarder  forwarder.Forwarder
	Journal    Journal
	Logger     *logrus.Logger
}

// Report is the per-frame summary published to observers.
type Report struct {
	Seq    uint64         `json:"seq"`
	At     time.Time      `json:"at"`
	FPS    int            `json:"fps"`
	Result gesture.Result `json:"result"`
}

// Observer receives a Report after every processed frame. It runs on the
// processing goroutine and must not block.
type Observer func(Report)

// Frame is one processed frame. The caller owns Image and must call Close.
type Frame struct {
	Report
	Hands []detector.HandLandmarks
	Image gocv.Mat
}

// JPEG encodes the annotated image.
func (f *Frame) JPEG() ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.Image)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

// Close releases the image.
func (f *Frame) Close() error {
	return f.Image.Close()
}

// Pipeline owns the stages and the per-run state (frame counter, FPS clock,
// last motion). Process calls are serialized.
type Pipeline struct {
	config     Config
	camera     capture.Camera
	detector   detector.Detector
	classifier *gesture.Classifier
	annotator  *overlay.Annotator
	forwarder  forwarder.Forwarder
	journal    Journal
	fps        *overlay.FPSMeter
	log        *logrus.Entry

	mu         sync.Mutex
	seq        uint64
	lastMotion gesture.Motion
	hasLast    bool
	handless   bool

	obsMu     sync.RWMutex
	observers []Observer
}

// New creates a Pipeline from its stages.
func New(config Config, deps Deps) (*Pipeline, error) {
	if deps.Camera == nil {
		return nil, fmt.Errorf("pipeline: %w: no camera", ErrCameraUnavailable)
	}
	if deps.Detector == nil {
		return nil, fmt.Errorf("pipeline: %w: no detector", ErrDetectorUnavailable)
	}
	if deps.Classifier == nil {
		return nil, errors.New("pipeline: no classifier")
	}
	if deps.Annotator == nil {
		deps.Annotator = overlay.NewAnnotator(overlay.Config{})
	}
	if deps.Forwarder == nil {
		deps.Forwarder = forwarder.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Pipeline{
		config:     config,
		camera:     deps.Camera,
		detector:   deps.Detector,
		classifier: deps.Classifier,
		annotator:  deps.Annotator,
		forwarder:  deps.Forwarder,
		journal:    deps.Journal,
		fps:        overlay.NewFPSMeter(),
		log:        logger.WithField("component", "pipeline"),
	}, nil
}

// Subscribe registers an observer for every subsequent frame.
func (p *Pipeline) Subscribe(o Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, o)
}

// Open opens the camera.
func (p *Pipeline) Open() error {
	if err := p.camera.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	p.log.Info("camera opened")
	return nil
}

// Close releases the camera, the landmark provider and the serial link.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return errors.Join(
		p.camera.Close(),
		p.detector.Close(),
		p.forwarder.Close(),
	)
}

// Frames returns how many frames have been processed.
func (p *Pipeline) Frames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// LastMotion returns the most recent motion and whether any frame has been
// processed yet.
func (p *Pipeline) LastMotion() (gesture.Motion, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastMotion, p.hasLast
}

// Process runs every stage once and returns the annotated frame.
func (p *Pipeline) Process(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, report, err := p.process()
	if err != nil {
		return nil, err
	}

	p.notify(report)
	return frame, nil
}

func (p *Pipeline) process() (*Frame, Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	img, err := p.camera.ReadFrame()
	if err != nil {
		return nil, Report{}, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	if p.config.Mirror {
		capture.Mirror(img)
	}

	hands, err := p.detector.Detect(img)
	if err != nil {
		img.Close()
		return nil, Report{}, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}

	result := p.classifier.Classify(hands)
	fps := p.fps.Tick()
	p.annotator.Annotate(img, result.Motion, fps, hands)

	if err := p.forwarder.Send(result.Motion); err != nil {
		img.Close()
		return nil, Report{}, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	p.seq++
	report := Report{
		Seq:    p.seq,
		At:     time.Now(),
		FPS:    fps,
		Result: result,
	}

	if !p.hasLast || result.Motion != p.lastMotion {
		p.journalMotion(result, report.At)
		p.log.WithFields(logrus.Fields{
			"motion": result.Motion,
			"count":  result.Count.Of(result.Controller),
			"hands":  result.Hands,
		}).Debug("motion changed")
	}
	p.lastMotion = result.Motion
	p.hasLast = true

	// Logged once per stretch of frames without a hand.
	noHand := errors.Is(result.Err(), gesture.ErrNoHandDetected)
	if noHand && !p.handless {
		p.log.WithField("seq", report.Seq).Debug(result.Err())
	}
	p.handless = noHand

	return &Frame{Report: report, Hands: hands, Image: *img}, report, nil
}

func (p *Pipeline) journalMotion(result gesture.Result, at time.Time) {
	if p.journal == nil {
		return
	}
	if err := p.journal.RecordMotion(result.Motion, result.Count.Of(result.Controller), at); err != nil {
		p.log.WithError(err).Warn("failed to record motion")
	}
}

func (p *Pipeline) notify(r Report) {
	p.obsMu.RLock()
	observers := p.observers
	p.obsMu.RUnlock()

	for _, o := range observers {
		o(r)
	}
}

// Run calls Process until ctx is cancelled or a stage fails. Each frame is
// handed to sink and closed afterwards. Cancellation returns nil.
func (p *Pipeline) Run(ctx context.Context, sink func(*Frame) error) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := p.Process(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			p.log.WithError(err).Error("pipeline stopped")
			return err
		}

		err = sink(frame)
		frame.Close()
		if err != nil {
			return err
		}
	}
}

// Stream runs the pipeline and passes each annotated frame to emit as JPEG.
func (p *Pipeline) Stream(ctx context.Context, emit func(jpeg []byte) error) error {
	return p.Run(ctx, func(f *Frame) error {
		data, err := f.JPEG()
		if err != nil {
			return err
		}
		return emit(data)
	})
}
