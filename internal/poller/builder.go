// internal/poller/builder.go
package poller

import (
	"time"

	cfg "github.com/tamzrod/pv-reporter/internal/config"
	pmodbus "github.com/tamzrod/pv-reporter/internal/poller/modbus"
)

// Build constructs a Poller and wires Modbus client lifecycle.
// The serial port is opened per transaction and closed right after,
// so a failed transaction never leaks an open port.
func Build(s cfg.SerialConfig, d cfg.DeviceConfig, clock func() time.Time) (*Poller, error) {
	// opener: ONE connection per transaction
	open := func(slaveID uint8) (Client, func() error, error) {
		c, err := pmodbus.New(pmodbus.Config{
			Port:     s.Port,
			BaudRate: s.BaudRate,
			DataBits: s.DataBits,
			Parity:   s.Parity,
			StopBits: s.StopBits,
			SlaveID:  slaveID,
			Timeout:  time.Duration(s.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}

	return New(
		Config{
			Device:  d.Name,
			Address: d.Address,
			Clock:   clock,
		},
		open,
	)
}
