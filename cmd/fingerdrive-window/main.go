// Command fingerdrive-window shows the annotated camera feed in a desktop
// window instead of serving it over HTTP. Press q or Esc to quit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayusman/fingerdrive/internal/app"
	"github.com/ayusman/fingerdrive/internal/config"
	"github.com/ayusman/fingerdrive/internal/log"
	"github.com/ayusman/fingerdrive/internal/pipeline"
	"gocv.io/x/gocv"
)

const (
	name        = "fingerdrive-window"
	windowTitle = "fingerdrive"
	keyEsc      = 27
)

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

	window := gocv.NewWindow(windowTitle)
	defer window.Close()

	err = application.Pipeline().Run(ctx, func(f *pipeline.Frame) error {
		window.IMShow(f.Image)
		if quitKey(window.WaitKey(1)) {
			stop()
		}
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("Pipeline failed")
		return 1
	}

	logger.Info("Shutting down")
	return 0
}

func quitKey(key int) bool {
	return key == 'q' || key == 'Q' || key == keyEsc
}
