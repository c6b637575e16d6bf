// Package forwarder sends motion commands to the vehicle over a serial link.
package forwarder

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ayusman/fingerdrive/internal/gesture"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// DefaultBaudRate matches the vehicle firmware.
const DefaultBaudRate = 9600

// ErrPortNotConfigured is returned when forwarding is enabled without a port.
var ErrPortNotConfigured = errors.New("serial port not configured")

// Forwarder delivers one motion per processed frame.
type Forwarder interface {
	Send(m gesture.Motion) error
	Close() error
}

// Config selects the serial link. A disabled config yields a no-op forwarder.
type Config struct {
	Enabled  bool
	Port     string
	BaudRate int
}

// openPort opens the serial device. Tests replace it.
var openPort = func(name string, baud int) (io.WriteCloser, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// New returns a SerialForwarder when forwarding is enabled and a Nop otherwise.
func New(config Config, logger *logrus.Logger) (Forwarder, error) {
	if !config.Enabled {
		return Nop{}, nil
	}
	if config.Port == "" {
		return nil, ErrPortNotConfigured
	}
	if config.BaudRate <= 0 {
		config.BaudRate = DefaultBaudRate
	}

	port, err := openPort(config.Port, config.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Port, err)
	}

	logger.WithFields(logrus.Fields{
		"port": config.Port,
		"baud": config.BaudRate,
	}).Info("Serial forwarding enabled")

	return NewSerialForwarder(port, config.Port), nil
}

// SerialForwarder writes the single-byte motion symbol to a port. There is no
// acknowledgement or retry.
type SerialForwarder struct {
	mu     sync.Mutex
	port   io.WriteCloser
	name   string
	closed bool
}

// NewSerialForwarder wraps an already open port.
func NewSerialForwarder(port io.WriteCloser, name string) *SerialForwarder {
	return &SerialForwarder{port: port, name: name}
}

// Send writes m.Symbol() to the port.
func (f *SerialForwarder) Send(m gesture.Motion) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("write %s: %w", f.name, io.ErrClosedPipe)
	}

	n, err := f.port.Write([]byte{m.Symbol()})
	if err != nil {
		return fmt.Errorf("write %s: %w", f.name, err)
	}
	if n != 1 {
		return fmt.Errorf("write %s: %w", f.name, io.ErrShortWrite)
	}
	return nil
}

// Close closes the port. Subsequent calls are no-ops.
func (f *SerialForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.port.Close()
}

// Nop discards every motion.
type Nop struct{}

func (Nop) Send(gesture.Motion) error { return nil }
func (Nop) Close() error              { return nil }

// Ports lists the serial devices present on this machine.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
