package rc1692

// commandID identifies a logical operation of the RC1692HP command set.
type commandID int

// The logical operations.
const (
	cmdNone commandID = iota
	cmdEnterConfig
	cmdExitConfig
	cmdMemoryConfig
	cmdMemoryWrite
	cmdMemoryRead
	cmdReadConfig
	cmdReadID
	cmdReadRSSI
	cmdReadTemperature
	cmdReadBattery
	cmdSendMessage
)

// MaxMessageLength is the largest payload, in bytes, the module accepts in a
// single transmitted message.
const MaxMessageLength = 12

// memoryWriteTerminator closes the memory configuration menu after a write.
const memoryWriteTerminator = 0xFF

// commandSpec is one catalog entry: the command's wire code plus the number
// of response bytes the module sends back. A response length of zero marks a
// fire-and-forget command that completes as soon as it has been written.
type commandSpec struct {
	id             commandID
	code           []byte
	responseLength int
}

// The command catalog. Codes and response lengths follow the RC1692HP serial
// interface: configuration mode is entered with a zero byte and every
// configuration command is acknowledged with a single '>' prompt.
var (
	enterConfigCommand = commandSpec{id: cmdEnterConfig, code: []byte{0x00}, responseLength: 1}
	exitConfigCommand  = commandSpec{id: cmdExitConfig, code: []byte{'X'}}

	memoryConfigCommand = commandSpec{id: cmdMemoryConfig, code: []byte{'M'}, responseLength: 1}
	memoryWriteCommand  = commandSpec{id: cmdMemoryWrite, responseLength: 1}
	memoryReadCommand   = commandSpec{id: cmdMemoryRead, code: []byte{'Y'}, responseLength: 1}
	readConfigCommand   = commandSpec{id: cmdReadConfig, responseLength: 2}

	readIDCommand          = commandSpec{id: cmdReadID, code: []byte{'9'}, responseLength: 12}
	readRSSICommand        = commandSpec{id: cmdReadRSSI, code: []byte{'S'}, responseLength: 1}
	readTemperatureCommand = commandSpec{id: cmdReadTemperature, code: []byte{'U'}, responseLength: 1}
	readBatteryCommand     = commandSpec{id: cmdReadBattery, code: []byte{'V'}, responseLength: 1}

	sendMessageCommand = commandSpec{id: cmdSendMessage}
)

func (c commandID) String() string {
	switch c {
	case cmdEnterConfig:
		return "enter-config"
	case cmdExitConfig:
		return "exit-normal"
	case cmdMemoryConfig:
		return "memory-config"
	case cmdMemoryWrite:
		return "memory-write"
	case cmdMemoryRead:
		return "memory-read"
	case cmdReadConfig:
		return "read-config"
	case cmdReadID:
		return "read-id"
	case cmdReadRSSI:
		return "read-rssi"
	case cmdReadTemperature:
		return "read-temperature"
	case cmdReadBattery:
		return "read-battery"
	case cmdSendMessage:
		return "send-message"
	}

	return "unknown"
}

// messagePayload builds the length-prefixed frame body for a transmitted
// message.
func messagePayload(message []byte) []byte {
	payload := make([]byte, 0, len(message)+1)
	payload = append(payload, byte(len(message)))

	return append(payload, message...)
}

// memoryWritePayload builds the frame body that writes value at address in
// the memory configuration menu and closes the menu again.
func memoryWritePayload(address byte, value byte) []byte {
	return []byte{address, value, memoryWriteTerminator}
}
