package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	"github.com/ayusman/fingerdrive/internal/app"
	"github.com/ayusman/fingerdrive/internal/config"
	"github.com/ayusman/fingerdrive/internal/forwarder"
	"github.com/ayusman/fingerdrive/internal/log"
	"github.com/ayusman/fingerdrive/internal/pipeline"
	"github.com/ayusman/fingerdrive/internal/server"
	"github.com/ayusman/fingerdrive/internal/tray"
	"github.com/sirupsen/logrus"
)

const name = "fingerdrive"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(name, args)
	if errors.Is(err, flag.ErrHelp) {
		config.Usage(name, os.Stdout)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		config.Usage(name, os.Stderr)
		return 2
	}

	if cfg.ListPorts {
		return listPorts()
	}

	logger, err := log.NewLogger(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger, app.Stages{})
	if err != nil {
		logger.WithError(err).Error("Failed to start")
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.WithError(err).Warn("Shutdown incomplete")
		}
	}()

	if err := application.Open(); err != nil {
		logger.WithError(err).Error("Failed to open camera")
		return 1
	}

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		logger.WithField("dir", webDir).Info("Serving viewer pages")
	}

	hub := server.NewTelemetryHub(cfg.TelemetryRate, logger)
	application.Pipeline().Subscribe(hub.Publish)

	streamer := &fatalStreamer{pipeline: application.Pipeline(), stop: stop}
	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     application.Store(),
		Streamer:  streamer,
		Telemetry: hub,
		Logger:    logger,
	})

	var serveErr error
	if cfg.Tray {
		serveErr = serveWithTray(ctx, stop, srv, application.Pipeline(), cfg.Addr, logger)
	} else {
		serveErr = srv.ListenAndServe(ctx, cfg.Addr)
	}
	if serveErr != nil {
		logger.WithError(serveErr).Error("Server stopped")
		return 1
	}
	if err := streamer.Err(); err != nil {
		logger.WithError(err).Error("Pipeline failed")
		return 1
	}

	logger.Info("Shutting down")
	return 0
}

// fatalStreamer stops the process when a stream ends on a camera, landmark
// provider or serial failure. Client disconnects are not fatal.
type fatalStreamer struct {
	pipeline *pipeline.Pipeline
	stop     context.CancelFunc

	mu  sync.Mutex
	err error
}

func (s *fatalStreamer) Stream(ctx context.Context, emit func(jpeg []byte) error) error {
	err := s.pipeline.Stream(ctx, emit)
	if isFatal(err) {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
		s.stop()
	}
	return err
}

// Err returns the first fatal stream error.
func (s *fatalStreamer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func isFatal(err error) bool {
	return errors.Is(err, pipeline.ErrCameraUnavailable) ||
		errors.Is(err, pipeline.ErrDetectorUnavailable) ||
		errors.Is(err, pipeline.ErrTransportUnavailable)
}

// serveWithTray runs the server in the background while the tray owns the
// main goroutine. Quitting from the tray cancels ctx.
func serveWithTray(ctx context.Context, stop context.CancelFunc, srv *server.Server, p *pipeline.Pipeline, addr string, logger *logrus.Logger) error {
	t := tray.New()
	t.OnQuit(stop)
	t.OnOpen(func() {
		if err := openBrowser(viewerURL(addr)); err != nil {
			logger.WithError(err).Warn("Failed to open viewer")
		}
	})
	p.Subscribe(func(r pipeline.Report) {
		t.SetLastMotion(r.Result.Motion)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, addr)
		t.Quit()
	}()

	t.Run()
	stop()
	return <-errCh
}

func listPorts() int {
	ports, err := forwarder.Ports()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: list serial ports: %v\n", name, err)
		return 1
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return 0
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return 0
}

// viewerURL turns a listen address into a URL a local browser can open.
func viewerURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.fingerdrive/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".fingerdrive", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
