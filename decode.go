package rc1692

import (
	"fmt"
	"strings"
)

// decode converts an accumulated response buffer into a Result, keyed by the
// command that produced it. Commands without a decode rule (plain writes and
// menu acknowledgements) yield an empty Result.
func decode(id commandID, buf []byte) Result {
	r := Result{}

	switch id {
	case cmdReadID:
		r.ID = hexString(buf[:4])
		r.PAC = hexString(buf[4:12])
	case cmdReadRSSI:
		r.RSSI = int(buf[0])
	case cmdReadTemperature:
		// The module reports temperature with a +128 offset.
		r.Temperature = int(buf[0]) - 128
	case cmdReadBattery:
		// One count is 30 mV.
		r.Battery = float64(buf[0]) * 0.030
	case cmdReadConfig:
		// Second byte is the '>' prompt.
		r.Value = int(buf[0])
	}

	return r
}

// hexString formats b as space-separated two-digit uppercase hex with a
// trailing space, matching the module documentation's notation.
func hexString(b []byte) string {
	var sb strings.Builder

	for _, v := range b {
		fmt.Fprintf(&sb, "%02X ", v)
	}

	return sb.String()
}
