package enocean

import (
	"context"
	"fmt"
	"io"

	"github.com/grid-x/serial"
)

// SerialDialer opens an RS485 transceiver attached via USB or a serial
// port. The baud rate is fixed by the transceiver model (see
// DeviceType.BaudRate).
type SerialDialer struct {
	// Path is the serial device path, e.g. "/dev/ttyUSB0".
	Path string

	// BaudRate is the line speed in bits per second.
	BaudRate int
}

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	port, err := serial.Open(&serial.Config{
		Address:  d.Path,
		BaudRate: d.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Path, err)
	}
	return port, nil
}

// String describes the endpoint for logs.
func (d SerialDialer) String() string {
	return fmt.Sprintf("serial:%s@%d", d.Path, d.BaudRate)
}
