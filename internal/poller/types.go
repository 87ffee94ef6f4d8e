// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/pv-reporter/internal/decoder"
)

// Function codes used by the inverter protocol.
const (
	FCHoldingRegisters uint8 = 3
	FCInputRegisters   uint8 = 4
)

// ReadBlock describes one Modbus read geometry.
type ReadBlock struct {
	FC       uint8
	Address  uint16
	Quantity uint16
}

// telemetryBlock and identityBlock are the two fixed transactions: 45 registers from 0.
var (
	telemetryBlock = ReadBlock{FC: FCInputRegisters, Address: 0, Quantity: decoder.RegisterCount}
	identityBlock  = ReadBlock{FC: FCHoldingRegisters, Address: 0, Quantity: decoder.RegisterCount}
)

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	Device  string
	Address uint8
	At      time.Time

	// Reading is the sentinel (Status -1) whenever Err is non-nil.
	Reading decoder.Reading
	Err     error // non-nil means the transaction failed
}
