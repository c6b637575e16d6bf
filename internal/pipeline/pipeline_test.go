package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/fingerdrive/internal/capture"
	"github.com/ayusman/fingerdrive/internal/detector"
	"github.com/ayusman/fingerdrive/internal/gesture"
	"github.com/ayusman/fingerdrive/internal/overlay"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"gocv.io/x/gocv"
)

type fakeForwarder struct {
	mu     sync.Mutex
	sent   []gesture.Motion
	err    error
	closed bool
}

func (f *fakeForwarder) Send(m gesture.Motion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeForwarder) symbols() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b bytes.Buffer
	for _, m := range f.sent {
		b.WriteByte(m.Symbol())
	}
	return b.String()
}

type journalEntry struct {
	motion gesture.Motion
	count  int
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []journalEntry
	err     error
}

func (j *fakeJournal) RecordMotion(m gesture.Motion, count int, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journalEntry{m, count})
	return j.err
}

type fixture struct {
	camera    *capture.MockCamera
	detector  *detector.MockDetector
	forwarder *fakeForwarder
	journal   *fakeJournal
	logs      *logtest.Hook
	pipeline  *Pipeline
}

func newFixture(t *testing.T, controller gesture.Hand) *fixture {
	t.Helper()

	img := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })

	cam := capture.NewMockCamera([]*gocv.Mat{&img}, true)
	det := detector.NewMockDetector()
	fwd := &fakeForwarder{}
	jr := &fakeJournal{}

	classifier, err := gesture.NewClassifier(gesture.Config{Controller: controller})
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	logger, logs := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	p, err := New(Config{Mirror: true}, Deps{
		Camera:     cam,
		Detector:   det,
		Classifier: classifier,
		Annotator:  overlay.NewAnnotator(overlay.Config{DrawLandmarks: true}),
		Forwarder:  fwd,
		Journal:    jr,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := p.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	return &fixture{camera: cam, detector: det, forwarder: fwd, journal: jr, logs: logs, pipeline: p}
}

func (f *fixture) process(t *testing.T) *Frame {
	t.Helper()
	frame, err := f.pipeline.Process(context.Background())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	t.Cleanup(func() { frame.Close() })
	return frame
}

func TestNew_RequiresStages(t *testing.T) {
	classifier, _ := gesture.NewClassifier(gesture.Config{Controller: gesture.Right})
	cam := capture.NewMockCamera(nil, false)
	det := detector.NewMockDetector()

	tests := []struct {
		name string
		deps Deps
		want error
	}{
		{"no camera", Deps{Detector: det, Classifier: classifier}, ErrCameraUnavailable},
		{"no detector", Deps{Camera: cam, Classifier: classifier}, ErrDetectorUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(Config{}, tt.deps); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := New(Config{}, Deps{Camera: cam, Detector: det}); err == nil {
		t.Error("expected error without classifier")
	}
}

func TestProcess_ClassifiesAndForwards(t *testing.T) {
	f := newFixture(t, gesture.Right)
	f.detector.SetHands([]detector.HandLandmarks{detector.PointingLandmarks(detector.HandednessRight)})

	frame := f.process(t)

	if frame.Result.Motion != gesture.MotionForward {
		t.Errorf("Motion = %v, want FORWARD", frame.Result.Motion)
	}
	if frame.Result.Count.Of(gesture.Right) != 1 {
		t.Errorf("Count[RIGHT] = %d, want 1", frame.Result.Count.Of(gesture.Right))
	}
	if frame.Seq != 1 {
		t.Errorf("Seq = %d, want 1", frame.Seq)
	}
	if frame.FPS != 0 {
		t.Errorf("first frame FPS = %d, want 0", frame.FPS)
	}
	if frame.Image.Empty() {
		t.Error("frame image should not be empty")
	}
	if got := f.forwarder.symbols(); got != "F" {
		t.Errorf("forwarded %q, want %q", got, "F")
	}
}

func TestProcess_NoHands(t *testing.T) {
	for _, controller := range gesture.Hands {
		t.Run(controller.String(), func(t *testing.T) {
			f := newFixture(t, controller)

			frame := f.process(t)

			if frame.Result.Motion != gesture.MotionNone {
				t.Errorf("Motion = %v, want NONE", frame.Result.Motion)
			}
			if !errors.Is(frame.Result.Err(), gesture.ErrNoHandDetected) {
				t.Errorf("Err() = %v, want ErrNoHandDetected", frame.Result.Err())
			}
			if got := f.forwarder.symbols(); got != " " {
				t.Errorf("forwarded %q, want a single space", got)
			}
		})
	}
}

func TestProcess_OneBytePerFrame(t *testing.T) {
	f := newFixture(t, gesture.Right)

	poses := []detector.HandLandmarks{
		detector.PoseLandmarks(detector.HandednessRight, false, true, false, false, false),
		detector.PoseLandmarks(detector.HandednessRight, false, true, true, false, false),
		detector.PoseLandmarks(detector.HandednessRight, false, true, true, true, false),
		detector.PoseLandmarks(detector.HandednessRight, false, true, true, true, true),
		detector.OpenPalmLandmarks(detector.HandednessRight),
	}
	for _, pose := range poses {
		f.detector.SetHands([]detector.HandLandmarks{pose})
		f.process(t)
	}

	if got := f.forwarder.symbols(); got != "FBRL " {
		t.Errorf("forwarded %q, want %q", got, "FBRL ")
	}
	if f.pipeline.Frames() != uint64(len(poses)) {
		t.Errorf("Frames() = %d, want %d", f.pipeline.Frames(), len(poses))
	}
}

func TestProcess_JournalsMotionChanges(t *testing.T) {
	f := newFixture(t, gesture.Right)

	pointing := []detector.HandLandmarks{detector.PointingLandmarks(detector.HandednessRight)}
	sequence := [][]detector.HandLandmarks{nil, nil, pointing, pointing, pointing, nil}
	for _, hands := range sequence {
		f.detector.SetHands(hands)
		f.process(t)
	}

	want := []journalEntry{
		{gesture.MotionNone, 0},
		{gesture.MotionForward, 1},
		{gesture.MotionNone, 0},
	}
	if len(f.journal.entries) != len(want) {
		t.Fatalf("journal entries = %v, want %v", f.journal.entries, want)
	}
	for i := range want {
		if f.journal.entries[i] != want[i] {
			t.Errorf("entry %d = %v, want %v", i, f.journal.entries[i], want[i])
		}
	}

	if m, ok := f.pipeline.LastMotion(); !ok || m != gesture.MotionNone {
		t.Errorf("LastMotion() = %v, %v", m, ok)
	}
}

func TestProcess_LogsNoHandOncePerStretch(t *testing.T) {
	f := newFixture(t, gesture.Right)

	pointing := []detector.HandLandmarks{detector.PointingLandmarks(detector.HandednessRight)}
	sequence := [][]detector.HandLandmarks{nil, nil, pointing, nil, nil, nil}
	for _, hands := range sequence {
		f.detector.SetHands(hands)
		f.process(t)
	}

	var seqs []any
	for _, e := range f.logs.AllEntries() {
		if e.Message == gesture.ErrNoHandDetected.Error() {
			seqs = append(seqs, e.Data["seq"])
		}
	}
	if len(seqs) != 2 || seqs[0] != uint64(1) || seqs[1] != uint64(4) {
		t.Errorf("no-hand entries at seq %v, want [1 4]", seqs)
	}
}

func TestProcess_JournalFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, gesture.Right)
	f.journal.err = errors.New("disk full")

	if _, err := f.pipeline.Process(context.Background()); err != nil {
		t.Errorf("Process() error = %v, want nil", err)
	}
}

func TestProcess_StageFailures(t *testing.T) {
	t.Run("camera", func(t *testing.T) {
		f := newFixture(t, gesture.Right)
		f.camera.SetError(errors.New("device unplugged"))

		if _, err := f.pipeline.Process(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
			t.Errorf("expected ErrCameraUnavailable, got %v", err)
		}
	})

	t.Run("detector", func(t *testing.T) {
		f := newFixture(t, gesture.Right)
		f.detector.SetError(errors.New("service exited"))

		if _, err := f.pipeline.Process(context.Background()); !errors.Is(err, ErrDetectorUnavailable) {
			t.Errorf("expected ErrDetectorUnavailable, got %v", err)
		}
	})

	t.Run("transport", func(t *testing.T) {
		f := newFixture(t, gesture.Right)
		f.forwarder.err = errors.New("write failed")

		if _, err := f.pipeline.Process(context.Background()); !errors.Is(err, ErrTransportUnavailable) {
			t.Errorf("expected ErrTransportUnavailable, got %v", err)
		}
		if f.pipeline.Frames() != 0 {
			t.Errorf("Frames() = %d, want 0 after failed forward", f.pipeline.Frames())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t, gesture.Right)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := f.pipeline.Process(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if f.camera.Reads() != 0 {
			t.Errorf("camera read %d times after cancel", f.camera.Reads())
		}
	})
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, gesture.Left)
	f.detector.SetHands([]detector.HandLandmarks{
		detector.PoseLandmarks(detector.HandednessLeft, false, true, true, false, false),
	})

	var reports []Report
	f.pipeline.Subscribe(func(r Report) { reports = append(reports, r) })

	f.process(t)
	f.process(t)

	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[1].Seq != 2 {
		t.Errorf("Seq = %d, want 2", reports[1].Seq)
	}
	if reports[0].Result.Motion != gesture.MotionBackward {
		t.Errorf("Motion = %v, want BACKWARD", reports[0].Result.Motion)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, gesture.Right)
	ctx, cancel := context.WithCancel(context.Background())

	frames := 0
	err := f.pipeline.Run(ctx, func(fr *Frame) error {
		frames++
		if frames == 3 {
			cancel()
		}
		return nil
	})

	if err != nil {
		t.Errorf("Run() error = %v, want nil on cancellation", err)
	}
	if frames != 3 {
		t.Errorf("sink saw %d frames, want 3", frames)
	}
}

func TestRun_StopsOnFatalError(t *testing.T) {
	f := newFixture(t, gesture.Right)
	f.camera.SetError(errors.New("device unplugged"))

	err := f.pipeline.Run(context.Background(), func(*Frame) error { return nil })
	if !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("Run() error = %v, want ErrCameraUnavailable", err)
	}
}

func TestRun_SinkError(t *testing.T) {
	f := newFixture(t, gesture.Right)
	gone := errors.New("client went away")

	err := f.pipeline.Run(context.Background(), func(*Frame) error { return gone })
	if !errors.Is(err, gone) {
		t.Errorf("Run() error = %v, want sink error", err)
	}
}

func TestStream_EmitsJPEG(t *testing.T) {
	f := newFixture(t, gesture.Right)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got [][]byte
	err := f.pipeline.Stream(ctx, func(jpeg []byte) error {
		got = append(got, jpeg)
		if len(got) == 2 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	for i, data := range got {
		// JPEG start-of-image marker.
		if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
			t.Errorf("frame %d is not a JPEG", i)
		}
	}
}

func TestClose_ReleasesStages(t *testing.T) {
	f := newFixture(t, gesture.Right)

	if err := f.pipeline.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if f.camera.IsOpen() {
		t.Error("camera should be closed")
	}
	if !f.detector.Closed() {
		t.Error("detector should be closed")
	}
	if !f.forwarder.closed {
		t.Error("forwarder should be closed")
	}
}
