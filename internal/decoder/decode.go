// internal/decoder/decode.go
package decoder

import (
	"fmt"
	"strconv"
	"time"
)

// ---- INPUT REGISTER MAP ----

const (
	regStatus       = 0
	regPVPowerHi    = 1
	regPVPowerLo    = 2
	regPVVolts      = 3
	regACPowerHi    = 11
	regACPowerLo    = 12
	regACVolts      = 14
	regEnergyTodayH = 26
	regEnergyTodayL = 27
	regEnergyTotalH = 28
	regEnergyTotalL = 29
	regTemperature  = 32
)

// ---- HOLDING REGISTER MAP ----

const (
	regFirmwareStart  = 9
	regControlFWStart = 12
	regSerialStart    = 23
	regModelHi        = 28
	regModelLo        = 29
	regDeviceType     = 43
	firmwareRegs      = 3
	serialNumberRegs  = 5
)

// DecodeInput converts input registers into a Reading stamped with now.
// Caller guarantees len(raw) >= RegisterCount.
// No IO. No failure path.
func DecodeInput(raw []uint16, now time.Time) Reading {
	status := int(raw[regStatus])

	r := Reading{
		Timestamp:    now,
		Status:       status,
		PVPower:      float64(pair(raw, regPVPowerHi, regPVPowerLo)) / 10.0,
		PVVolts:      float64(raw[regPVVolts]) / 10.0,
		ACPower:      float64(pair(raw, regACPowerHi, regACPowerLo)) / 10.0,
		ACVolts:      float64(raw[regACVolts]) / 10.0,
		EnergyToday:  int64(pair(raw, regEnergyTodayH, regEnergyTodayL)) * 100,
		EnergyTotal:  int64(pair(raw, regEnergyTotalH, regEnergyTotalL)) * 100,
		InverterTemp: float64(raw[regTemperature]) / 10.0,
	}
	if status != StatusUnknown {
		r.Comment = "Status: " + strconv.Itoa(status)
	}
	return r
}

// DecodeHolding converts holding registers into a DeviceIdentity.
// Caller guarantees len(raw) >= RegisterCount.
func DecodeHolding(raw []uint16) DeviceIdentity {
	return DeviceIdentity{
		Firmware:        ascii(raw[regFirmwareStart : regFirmwareStart+firmwareRegs]),
		ControlFirmware: ascii(raw[regControlFWStart : regControlFWStart+firmwareRegs]),
		SerialNumber:    ascii(raw[regSerialStart : regSerialStart+serialNumberRegs]),
		ModelCode:       ModelCode(pair(raw, regModelHi, regModelLo)),
		DeviceTypeCode:  int(raw[regDeviceType]),
	}
}

// ModelCode renders the six model nibbles at bit offsets 20,16,12,8,4,0.
func ModelCode(mo uint32) string {
	return fmt.Sprintf("T%d Q%d P%d U%d M%d S%d",
		(mo>>20)&0xF,
		(mo>>16)&0xF,
		(mo>>12)&0xF,
		(mo>>8)&0xF,
		(mo>>4)&0xF,
		mo&0xF,
	)
}

// SentinelReading is what a failed transaction produces instead of a decode.
func SentinelReading(now time.Time) Reading {
	return Reading{Timestamp: now, Status: StatusUnknown}
}

// SentinelIdentity is the reset identity after a failed version read.
func SentinelIdentity() DeviceIdentity {
	return DeviceIdentity{DeviceTypeCode: -1}
}

// StatusText names the inverter status codes seen in practice.
func StatusText(status int) string {
	switch status {
	case StatusUnknown:
		return "unknown"
	case 0:
		return "waiting"
	case 1:
		return "normal"
	case 3:
		return "fault"
	default:
		return "status " + strconv.Itoa(status)
	}
}

// ---- helpers ----

// pair composes a 32-bit quantity from a (high, low) register pair.
func pair(raw []uint16, hi, lo int) uint32 {
	return uint32(raw[hi])<<16 | uint32(raw[lo])
}

// ascii unpacks two characters per register, high byte first. Each byte
// becomes the code point of the same value, so bytes above 0x7F survive
// as Latin-1 instead of turning into invalid UTF-8.
func ascii(regs []uint16) string {
	out := make([]rune, 0, len(regs)*2)
	for _, r := range regs {
		out = append(out, rune(r>>8), rune(r&0xFF))
	}
	return string(out)
}
