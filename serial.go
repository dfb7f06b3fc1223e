package rc1692

import (
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// Open opens the named serial port with the configured electrical parameters
// and returns a Device ready to Serve on it. The returned stream is owned by
// the caller and should be closed after Shutdown.
//
// Hardware flow control cannot be requested through the serial driver; the
// FlowControl setting documents the intent and is applied by the platform's
// port configuration.
func Open(name string, opts ...Option) (*Device, io.ReadWriteCloser, error) {
	d := New(opts...)

	port, err := serial.OpenPort(&serial.Config{
		Name:     name,
		Baud:     d.config.BaudRate,
		Size:     d.config.WordSize,
		Parity:   d.config.Parity,
		StopBits: d.config.StopBits,
	})

	if err != nil {
		return nil, nil, fmt.Errorf("open port %s: %w", name, err)
	}

	return d, port, nil
}
