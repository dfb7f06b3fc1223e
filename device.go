package rc1692

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/basilfx/go-utilities/taskrunner"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
	"github.com/twinj/uuid"
)

// EventChannelSize is the size of the dispatcher event channel. Enqueueing a
// command while it is full fails with ErrQueueFull.
const EventChannelSize = 32

// Config holds the transport and pipeline configuration of a Device.
type Config struct {
	// BaudRate, WordSize, Parity and StopBits are the electrical parameters
	// applied by Open. FlowControl requests hardware flow control where the
	// platform driver supports it.
	BaudRate    int
	WordSize    byte
	Parity      serial.Parity
	StopBits    serial.StopBits
	FlowControl bool

	// Timeout is how long a command awaits its response before it fails
	// with ErrResponseTimeout.
	Timeout time.Duration

	// Delay is the pause between consecutive commands in normal mode. No
	// delay applies in config mode.
	Delay time.Duration

	// ShouldLog enables diagnostic logging.
	ShouldLog bool
}

func defaultConfig() Config {
	return Config{
		BaudRate:    19200,
		WordSize:    8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		FlowControl: true,
		Timeout:     1 * time.Second,
		Delay:       2 * time.Second,
		ShouldLog:   true,
	}
}

// Option is a functional option for configuring a Device.
type Option func(*Config)

// WithBaudRate sets the baud rate used by Open.
func WithBaudRate(rate int) Option {
	return func(c *Config) {
		c.BaudRate = rate
	}
}

// WithWordSize sets the number of data bits used by Open.
func WithWordSize(size byte) Option {
	return func(c *Config) {
		c.WordSize = size
	}
}

// WithParity sets the parity used by Open.
func WithParity(parity serial.Parity) Option {
	return func(c *Config) {
		c.Parity = parity
	}
}

// WithStopBits sets the number of stop bits used by Open.
func WithStopBits(bits serial.StopBits) Option {
	return func(c *Config) {
		c.StopBits = bits
	}
}

// WithFlowControl enables or disables hardware flow control.
func WithFlowControl(enabled bool) Option {
	return func(c *Config) {
		c.FlowControl = enabled
	}
}

// WithTimeout sets the response timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithDelay sets the pause between consecutive commands in normal mode.
func WithDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.Delay = delay
	}
}

// WithLogging enables or disables diagnostic logging.
func WithLogging(enabled bool) Option {
	return func(c *Config) {
		c.ShouldLog = enabled
	}
}

// Device drives an RC1692HP module attached to a serial stream. Commands are
// queued and written one at a time; at most one command awaits a response at
// any instant.
type Device struct {
	stream io.ReadWriter
	config Config

	taskRunner *taskrunner.TaskRunner

	events chan event
	done   chan struct{}

	// Dispatcher state, owned by the dispatcher task.
	state    dispatchState
	queue    []*step
	inflight *step
	buf      []byte
	seq      uint64
	timer    *time.Timer

	mode Mode
	lock sync.RWMutex
}

// New returns a new initialized instance of Device.
func New(opts ...Option) *Device {
	cfg := defaultConfig()

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Device{
		config:     cfg,
		taskRunner: taskrunner.New(),
		events:     make(chan event, EventChannelSize),
		done:       make(chan struct{}),
		state:      stateIdle,
		mode:       ModeNormal,
	}
}

// Mode returns the tracked operating mode of the module. The mode flips when
// a mode switch command completes, not when it is queued.
func (d *Device) Mode() Mode {
	d.lock.RLock()
	defer d.lock.RUnlock()

	return d.mode
}

func (d *Device) setMode(mode Mode) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.mode = mode
}

// SwitchMode queues a switch to the given operating mode. The tracked mode is
// updated once the module confirms the switch: for config mode when the '>'
// prompt arrives, for normal mode as soon as the exit command has been
// written.
func (d *Device) SwitchMode(mode Mode) error {
	switch mode {
	case ModeConfig:
		return d.enqueue(&step{
			spec:   enterConfigCommand,
			onDone: func() { d.setMode(ModeConfig) },
		})
	case ModeNormal:
		return d.enqueue(&step{
			spec:   exitConfigCommand,
			onDone: func() { d.setMode(ModeNormal) },
		})
	}

	return fmt.Errorf("%w: %d", ErrUnsupportedMode, mode)
}

// Configure queues a write of value to the configuration memory at address.
// The module must be in config mode for the write to take effect.
func (d *Device) Configure(address byte, value byte) error {
	if err := d.enqueue(&step{spec: memoryConfigCommand}); err != nil {
		return err
	}

	return d.enqueue(&step{
		spec:    memoryWriteCommand,
		payload: memoryWritePayload(address, value),
	})
}

// SendMessage queues a transmission of message, at most MaxMessageLength
// bytes. The frame carries a single length byte followed by the raw payload
// and expects no response.
func (d *Device) SendMessage(message []byte) error {
	if len(message) > MaxMessageLength {
		return fmt.Errorf("%w: %d bytes, maximum is %d", ErrMessageTooLong, len(message), MaxMessageLength)
	}

	return d.enqueue(&step{
		spec:    sendMessageCommand,
		payload: messagePayload(message),
	})
}

// ReadID queues a read of the module's device ID and PAC code.
func (d *Device) ReadID(callback Callback) error {
	return d.read(readIDCommand, callback)
}

// ReadRSSI queues a read of the received signal strength.
func (d *Device) ReadRSSI(callback Callback) error {
	return d.read(readRSSICommand, callback)
}

// ReadTemperature queues a read of the module temperature.
func (d *Device) ReadTemperature(callback Callback) error {
	return d.read(readTemperatureCommand, callback)
}

// ReadBattery queues a read of the battery voltage.
func (d *Device) ReadBattery(callback Callback) error {
	return d.read(readBatteryCommand, callback)
}

// ReadConfigurationAt queues a read of the configuration memory at address.
// The module must be in config mode.
func (d *Device) ReadConfigurationAt(address byte, callback Callback) error {
	if err := d.enqueue(&step{spec: memoryReadCommand}); err != nil {
		return err
	}

	return d.enqueue(&step{
		spec:     readConfigCommand,
		payload:  []byte{address},
		callback: callback,
	})
}

func (d *Device) read(spec commandSpec, callback Callback) error {
	return d.enqueue(&step{spec: spec, callback: callback})
}

// enqueue hands a step to the dispatcher task. It never blocks; a full event
// channel fails with ErrQueueFull.
func (d *Device) enqueue(s *step) error {
	s.id = uuid.NewV4()

	select {
	case d.events <- event{kind: eventEnqueue, step: s}:
		return nil
	default:
		return ErrQueueFull
	}
}

// post delivers an internal event to the dispatcher task. It gives up once
// the dispatcher has stopped, so timer goroutines cannot linger after
// Shutdown.
func (d *Device) post(ev event) bool {
	select {
	case d.events <- ev:
		return true
	case <-d.done:
		return false
	}
}

func (d *Device) debugf(format string, args ...interface{}) {
	if d.config.ShouldLog {
		log.Debugf(format, args...)
	}
}

func (d *Device) warnf(format string, args ...interface{}) {
	if d.config.ShouldLog {
		log.Warnf(format, args...)
	}
}

func (d *Device) errorf(format string, args ...interface{}) {
	if d.config.ShouldLog {
		log.Errorf(format, args...)
	}
}
