// internal/decoder/types.go
package decoder

import "time"

// RegisterCount is the number of registers read per transaction (0..44).
// Both input and holding decodes index into this window.
const RegisterCount = 45

// StatusUnknown marks a reading that did not come from a successful transaction.
const StatusUnknown = -1

// Reading is one decoded telemetry sample.
// Scaled fields are derived from raw registers only; never mutated afterwards.
type Reading struct {
	Timestamp    time.Time `json:"timestamp"`
	Status       int       `json:"status"`
	PVPower      float64   `json:"pv_power"`      // W
	PVVolts      float64   `json:"pv_volts"`      // V
	ACPower      float64   `json:"ac_power"`      // W
	ACVolts      float64   `json:"ac_volts"`      // V
	EnergyToday  int64     `json:"energy_today"`  // Wh
	EnergyTotal  int64     `json:"energy_total"`  // Wh
	InverterTemp float64   `json:"inverter_temp"` // °C
	Comment      string    `json:"comment,omitempty"`
}

// Valid reports whether the reading came from a successful read.
func (r Reading) Valid() bool {
	return r.Status != StatusUnknown
}

// DeviceIdentity is firmware/identity/model metadata from holding registers.
type DeviceIdentity struct {
	Firmware        string `json:"firmware"`
	ControlFirmware string `json:"control_firmware"`
	SerialNumber    string `json:"serial_number"`
	ModelCode       string `json:"model_code"`
	DeviceTypeCode  int    `json:"device_type_code"`
}

// Known reports whether the identity was decoded from a successful read.
func (d DeviceIdentity) Known() bool {
	return d.DeviceTypeCode != -1
}
