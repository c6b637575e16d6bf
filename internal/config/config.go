// Package config loads startup settings from .env, FINGERDRIVE_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ayusman/fingerdrive/internal/gesture"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FINGERDRIVE_"

// Config holds every startup setting. None of them change at runtime.
type Config struct {
	// Controller is the hand whose finger count drives the vehicle.
	Controller      string `validate:"required,oneof=LEFT RIGHT"`
	HardwareEnabled bool
	SerialPort      string `validate:"required_if=HardwareEnabled true"`
	BaudRate        int    `validate:"gt=0"`

	CameraID    int `validate:"gte=0"`
	FrameWidth  int `validate:"gt=0"`
	FrameHeight int `validate:"gt=0"`
	CaptureFPS  int `validate:"gt=0"`
	Mirror      bool

	DrawLandmarks bool
	MaxHands      int     `validate:"gte=1,lte=4"`
	MinDetection  float64 `validate:"gte=0,lte=1"`
	MinTracking   float64 `validate:"gte=0,lte=1"`
	ScriptPath    string
	PythonPath    string

	Addr          string `validate:"required,hostname_port"`
	WebDir        string
	DBPath        string  `validate:"required"`
	TelemetryRate float64 `validate:"gt=0"`
	Tray          bool

	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogFile  string

	ListPorts bool
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Controller:    "RIGHT",
		BaudRate:      9600,
		FrameWidth:    640,
		FrameHeight:   480,
		CaptureFPS:    30,
		Mirror:        true,
		DrawLandmarks: true,
		MaxHands:      2,
		MinDetection:  0.5,
		MinTracking:   0.5,
		Addr:          "0.0.0.0:5000",
		DBPath:        defaultDBPath(),
		TelemetryRate: 15,
		LogLevel:      "info",
	}
}

// Load reads .env from the working directory when present, applies
// FINGERDRIVE_* variables, parses args as flags and validates the result.
func Load(name string, args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(io.Discard)
	cfg.bindFlags(fset)
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage writes the flag help for name to w.
func Usage(name string, w io.Writer) {
	cfg := Default()
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg.bindFlags(fset)
	fset.SetOutput(w)
	fmt.Fprintf(w, "Usage of %s:\n", name)
	fset.PrintDefaults()
}

func (c *Config) bindFlags(fset *flag.FlagSet) {
	fset.StringVar(&c.Controller, "controller", c.Controller, "controlling hand: LEFT or RIGHT")
	fset.BoolVar(&c.HardwareEnabled, "hardware", c.HardwareEnabled, "forward motions to the vehicle over serial")
	fset.StringVar(&c.SerialPort, "port", c.SerialPort, "serial port of the vehicle, e.g. /dev/ttyUSB0 or COM6")
	fset.IntVar(&c.BaudRate, "baud", c.BaudRate, "serial baud rate")
	fset.IntVar(&c.CameraID, "camera", c.CameraID, "camera device index")
	fset.IntVar(&c.FrameWidth, "width", c.FrameWidth, "requested frame width")
	fset.IntVar(&c.FrameHeight, "height", c.FrameHeight, "requested frame height")
	fset.IntVar(&c.CaptureFPS, "fps", c.CaptureFPS, "requested capture rate")
	fset.BoolVar(&c.Mirror, "mirror", c.Mirror, "mirror frames horizontally before detection")
	fset.BoolVar(&c.DrawLandmarks, "landmarks", c.DrawLandmarks, "draw hand landmarks on the video")
	fset.IntVar(&c.MaxHands, "max-hands", c.MaxHands, "maximum hands reported by the landmark provider")
	fset.Float64Var(&c.MinDetection, "min-detection", c.MinDetection, "minimum hand detection confidence")
	fset.Float64Var(&c.MinTracking, "min-tracking", c.MinTracking, "minimum hand tracking confidence")
	fset.StringVar(&c.ScriptPath, "script", c.ScriptPath, "path to the MediaPipe landmark service script")
	fset.StringVar(&c.PythonPath, "python", c.PythonPath, "python interpreter for the landmark service")
	fset.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fset.StringVar(&c.WebDir, "web", c.WebDir, "directory of the viewer pages")
	fset.StringVar(&c.DBPath, "db", c.DBPath, "session journal database path")
	fset.Float64Var(&c.TelemetryRate, "telemetry-rate", c.TelemetryRate, "maximum telemetry messages per second")
	fset.BoolVar(&c.Tray, "tray", c.Tray, "show a system tray icon")
	fset.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: trace, debug, info, warn, error")
	fset.StringVar(&c.LogFile, "log-file", c.LogFile, "also write logs to this rotated file")
	fset.BoolVar(&c.ListPorts, "list-ports", c.ListPorts, "print available serial ports and exit")
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}

	str("CONTROLLER", &c.Controller)
	boolean("HARDWARE", &c.HardwareEnabled)
	str("SERIAL_PORT", &c.SerialPort)
	integer("BAUD_RATE", &c.BaudRate)
	integer("CAMERA", &c.CameraID)
	integer("FRAME_WIDTH", &c.FrameWidth)
	integer("FRAME_HEIGHT", &c.FrameHeight)
	integer("CAPTURE_FPS", &c.CaptureFPS)
	boolean("MIRROR", &c.Mirror)
	boolean("DRAW_LANDMARKS", &c.DrawLandmarks)
	integer("MAX_HANDS", &c.MaxHands)
	float("MIN_DETECTION", &c.MinDetection)
	float("MIN_TRACKING", &c.MinTracking)
	str("SCRIPT", &c.ScriptPath)
	str("PYTHON", &c.PythonPath)
	str("ADDR", &c.Addr)
	str("WEB_DIR", &c.WebDir)
	str("DB_PATH", &c.DBPath)
	float("TELEMETRY_RATE", &c.TelemetryRate)
	boolean("TRAY", &c.Tray)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)

	return errors.Join(errs...)
}

func (c *Config) normalize() {
	c.Controller = strings.ToUpper(strings.TrimSpace(c.Controller))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.SerialPort = strings.TrimSpace(c.SerialPort)
}

// Hand returns the controller as a gesture.Hand.
func (c *Config) Hand() (gesture.Hand, error) {
	return gesture.ParseHand(c.Controller)
}

var validate = validator.New()

// Validate checks every field constraint and reports all violations at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_if":
		return fmt.Sprintf("%s is required when hardware forwarding is enabled", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", fe.Field(), fe.Value())
	}
	return fmt.Sprintf("%s fails %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fingerdrive.db"
	}
	return filepath.Join(home, ".fingerdrive", "fingerdrive.db")
}
