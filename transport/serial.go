package transport

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the factory baud rate of the modules.
const DefaultBaudRate = 9600

// readTimeout bounds each background read so Close is noticed promptly.
const readTimeout = 100 * time.Millisecond

// OpenSerial opens a serial device at baud 8N1 and wraps it in a Stream.
//
// Example:
//
//	port, err := transport.OpenSerial("/dev/ttyUSB0", transport.DefaultBaudRate)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
func OpenSerial(path string, baud int) (*Stream, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}
	return NewStream(port), nil
}

// Ports lists the serial devices present on the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}
	return ports, nil
}

// IsDisconnect reports whether err means the serial device went away, as
// opposed to a configuration or permission problem.
func IsDisconnect(err error) bool {
	var (
		ptr  *serial.PortError
		val  serial.PortError
		code serial.PortErrorCode
	)
	switch {
	case errors.As(err, &ptr):
		code = ptr.Code()
	case errors.As(err, &val):
		code = val.Code()
	default:
		return false
	}
	switch code {
	case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
		return true
	default:
		return false
	}
}
