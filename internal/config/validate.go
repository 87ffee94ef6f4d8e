// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	// ------------------------------------------------------------
	// CREDENTIALS
	// ------------------------------------------------------------

	if cfg.PVOutput.APIKey == "" {
		return errors.New("pvoutput.api_key is required")
	}
	if perHour, low := cfg.PVOutput.Quota(); perHour < 0 || low < 0 {
		return fmt.Errorf("pvoutput.requests_per_hour (%d) and low_quota_warning (%d) must not be negative", perHour, low)
	}

	// ------------------------------------------------------------
	// SERIAL
	// ------------------------------------------------------------

	if cfg.Serial.Port == "" {
		return errors.New("serial.port is required")
	}
	switch cfg.Serial.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("serial.parity %q must be one of N, E, O", cfg.Serial.Parity)
	}
	if cfg.Serial.DataBits < 5 || cfg.Serial.DataBits > 8 {
		return fmt.Errorf("serial.data_bits %d out of range 5..8", cfg.Serial.DataBits)
	}
	if cfg.Serial.StopBits != 1 && cfg.Serial.StopBits != 2 {
		return fmt.Errorf("serial.stop_bits %d must be 1 or 2", cfg.Serial.StopBits)
	}

	// ------------------------------------------------------------
	// DEVICES <-> TARGETS
	// ------------------------------------------------------------

	if len(cfg.Devices) == 0 {
		return errors.New("at least one device is required")
	}

	addrOwner := make(map[uint8]string)
	nameOwner := make(map[string]struct{})

	for i, d := range cfg.Devices {
		if d.Address < 1 || d.Address > 247 {
			return fmt.Errorf("device %d (%s): address %d out of range 1..247", i, d.Name, d.Address)
		}
		if d.SystemID == "" {
			return fmt.Errorf("device %d (%s): system_id is required (devices and system ids must match one to one)", i, d.Name)
		}
		if prev, exists := addrOwner[d.Address]; exists {
			return fmt.Errorf("address collision: address %d used by devices %q and %q", d.Address, prev, d.Name)
		}
		addrOwner[d.Address] = d.Name

		if _, exists := nameOwner[d.Name]; exists {
			return fmt.Errorf("duplicate device name %q", d.Name)
		}
		nameOwner[d.Name] = struct{}{}
	}

	// ------------------------------------------------------------
	// SCHEDULE
	// ------------------------------------------------------------

	start, stop := cfg.Schedule.Hours()
	if start < 0 || start > 23 {
		return fmt.Errorf("schedule.start_hour %d out of range 0..23", start)
	}
	if stop < 1 || stop > 24 {
		return fmt.Errorf("schedule.stop_hour %d out of range 1..24", stop)
	}
	if start >= stop {
		return fmt.Errorf("schedule.start_hour %d must be before stop_hour %d", start, stop)
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone %q: %w", cfg.Schedule.Timezone, err)
	}

	// ------------------------------------------------------------
	// WEATHER (OPT-IN)
	// ------------------------------------------------------------

	if cfg.WeatherEnabled() {
		if cfg.Weather.Latitude == nil || cfg.Weather.Longitude == nil {
			return errors.New("weather.latitude and weather.longitude are required when weather.api_key is set")
		}
		if *cfg.Weather.Latitude < -90 || *cfg.Weather.Latitude > 90 {
			return fmt.Errorf("weather.latitude %v out of range", *cfg.Weather.Latitude)
		}
		if *cfg.Weather.Longitude < -180 || *cfg.Weather.Longitude > 180 {
			return fmt.Errorf("weather.longitude %v out of range", *cfg.Weather.Longitude)
		}
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", cfg.Logging.Format)
	}

	return nil
}
