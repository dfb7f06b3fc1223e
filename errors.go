package rc1692

import "errors"

var (
	// ErrUnsupportedMode is returned by SwitchMode for a mode value that is
	// neither ModeNormal nor ModeConfig.
	ErrUnsupportedMode = errors.New("unsupported mode")

	// ErrMessageTooLong is returned by SendMessage when the payload exceeds
	// MaxMessageLength bytes.
	ErrMessageTooLong = errors.New("message too long")

	// ErrResponseTimeout is delivered to a command's callback when the module
	// did not produce a complete response within the configured timeout.
	ErrResponseTimeout = errors.New("timeout while waiting for response")

	// ErrQueueFull is returned when the command queue cannot accept more
	// work.
	ErrQueueFull = errors.New("command queue full")
)
