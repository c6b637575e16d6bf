// Package app wires the configured stages into a pipeline and owns the
// session that records its run.
package app

import (
	"errors"
	"fmt"

	"github.com/ayusman/fingerdrive/internal/capture"
	"github.com/ayusman/fingerdrive/internal/config"
	"github.com/ayusman/fingerdrive/internal/detector"
	"github.com/ayusman/fingerdrive/internal/forwarder"
	"github.com/ayusman/fingerdrive/internal/gesture"
	"github.com/ayusman/fingerdrive/internal/overlay"
	"github.com/ayusman/fingerdrive/internal/pipeline"
	"github.com/ayusman/fingerdrive/internal/store"
	"github.com/sirupsen/logrus"
)

// Stages overrides the camera and landmark provider. Nil fields are built
// from the configuration.
type Stages struct {
	Camera   capture.Camera
	Detector detector.Detector
}

// App is one run of the control pipeline together with its session record.
type App struct {
	config   *config.Config
	log      *logrus.Entry
	store    *store.Store
	session  *store.Session
	pipeline *pipeline.Pipeline
}

// New builds every stage from cfg and starts a session. Anything opened
// before a failure is released again.
func New(cfg *config.Config, logger *logrus.Logger, stages Stages) (a *App, err error) {
	hand, err := cfg.Hand()
	if err != nil {
		return nil, err
	}
	classifier, err := gesture.NewClassifier(gesture.Config{Controller: hand})
	if err != nil {
		return nil, err
	}

	var cleanup []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	cleanup = append(cleanup, st.Close)

	camera := stages.Camera
	if camera == nil {
		camera = capture.NewCamera(capture.Config{
			DeviceID: cfg.CameraID,
			Width:    cfg.FrameWidth,
			Height:   cfg.FrameHeight,
			FPS:      cfg.CaptureFPS,
		})
	}
	cleanup = append(cleanup, camera.Close)

	det := stages.Detector
	if det == nil {
		dcfg := detector.DefaultConfig()
		dcfg.MaxHands = cfg.MaxHands
		dcfg.MinConfidence = cfg.MinDetection
		dcfg.MinTrackingConf = cfg.MinTracking
		dcfg.ScriptPath = cfg.ScriptPath
		dcfg.PythonPath = cfg.PythonPath

		mp, err := detector.NewMediaPipeDetector(dcfg, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrDetectorUnavailable, err)
		}
		det = mp
	}
	cleanup = append(cleanup, det.Close)

	fwd, err := forwarder.New(forwarder.Config{
		Enabled:  cfg.HardwareEnabled,
		Port:     cfg.SerialPort,
		BaudRate: cfg.BaudRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrTransportUnavailable, err)
	}
	cleanup = append(cleanup, fwd.Close)

	session := &store.Session{
		Controller: hand.String(),
		Forwarding: cfg.HardwareEnabled,
		SerialPort: cfg.SerialPort,
	}
	if err := st.Sessions().Start(session); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	p, err := pipeline.New(pipeline.Config{Mirror: cfg.Mirror}, pipeline.Deps{
		Camera:     camera,
		Detector:   det,
		Classifier: classifier,
		Annotator:  overlay.NewAnnotator(overlay.Config{DrawLandmarks: cfg.DrawLandmarks}),
		Forwarder:  fwd,
		Journal:    st.NewJournal(session.ID),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithField("component", "app")
	log.WithFields(logrus.Fields{
		"session":    session.ID,
		"controller": session.Controller,
		"forwarding": session.Forwarding,
	}).Info("session started")

	return &App{
		config:   cfg,
		log:      log,
		store:    st,
		session:  session,
		pipeline: p,
	}, nil
}

// Open opens the camera.
func (a *App) Open() error {
	return a.pipeline.Open()
}

// Close finishes the session with the processed frame count and releases
// every stage and the journal.
func (a *App) Close() error {
	frames := a.pipeline.Frames()

	var errs []error
	if err := a.store.Sessions().Finish(a.session.ID, int64(frames)); err != nil {
		errs = append(errs, fmt.Errorf("finish session: %w", err))
	}
	if err := a.pipeline.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}

	a.log.WithFields(logrus.Fields{
		"session": a.session.ID,
		"frames":  frames,
	}).Info("session finished")

	return errors.Join(errs...)
}

// Pipeline returns the control pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Store returns the session journal.
func (a *App) Store() *store.Store {
	return a.store
}

// Session returns the session this run records into.
func (a *App) Session() *store.Session {
	return a.session
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config {
	return a.config
}
