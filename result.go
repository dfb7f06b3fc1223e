package rc1692

// Mode indicates the operating mode of the module.
type Mode int

// The operating modes. The module boots in normal mode; configuration
// commands are only meaningful after switching to config mode.
const (
	ModeNormal Mode = iota
	ModeConfig
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeConfig:
		return "config"
	}

	return "unknown"
}

// Result contains the decoded response of a single command. Only the fields
// belonging to the command that produced it are populated; Err is set when
// the command failed instead of producing data.
type Result struct {
	// ID and PAC are set by ReadID, formatted as space-separated uppercase
	// hex octets ("00 11 22 33 ").
	ID  string
	PAC string

	// RSSI is set by ReadRSSI.
	RSSI int

	// Temperature is set by ReadTemperature, in degrees Celsius.
	Temperature int

	// Battery is set by ReadBattery, in volts.
	Battery float64

	// Value is set by ReadConfigurationAt.
	Value int

	// Err is ErrResponseTimeout when no response arrived in time, or a write
	// error when the command could not be transmitted.
	Err error
}

// Callback receives the result of a completed command. It is invoked on the
// dispatcher goroutine and must not block.
type Callback func(Result)
