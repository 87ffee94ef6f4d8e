// internal/config/normalize.go
package config

import (
	"strconv"
	"strings"
)

// ---- DEFAULTS ----

const (
	DefaultBaudRate  = 9600
	DefaultDataBits  = 8
	DefaultParity    = "N"
	DefaultStopBits  = 1
	DefaultTimeoutMs = 1000

	DefaultPVOutputURL     = "https://pvoutput.org/service/r2"
	DefaultMaxAttempts     = 3
	DefaultHTTPTimeoutMs   = 10000
	DefaultRequestsPerHour = 60
	DefaultLowQuotaWarning = 10

	DefaultWeatherURL = "https://api.openweathermap.org/data/2.5"

	DefaultTimezone      = "Local"
	DefaultStartHour     = 5
	DefaultStopHour      = 21
	DefaultRetryDelayS   = 60
	DefaultPartialDelayS = 60

	DefaultMQTTTopic = "pv_inverter"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Normalize fills defaults for anything left unset.
// It is allowed to mutate configuration.
// It runs before Validate so validation sees the effective values.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// SERIAL (9600 8N1)
	// ------------------------------------------------------------

	s := &cfg.Serial
	if s.BaudRate == 0 {
		s.BaudRate = DefaultBaudRate
	}
	if s.DataBits == 0 {
		s.DataBits = DefaultDataBits
	}
	s.Parity = strings.ToUpper(strings.TrimSpace(s.Parity))
	if s.Parity == "" {
		s.Parity = DefaultParity
	}
	if s.StopBits == 0 {
		s.StopBits = DefaultStopBits
	}
	if s.TimeoutMs <= 0 {
		s.TimeoutMs = DefaultTimeoutMs
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		d.Name = strings.TrimSpace(d.Name)
		d.SystemID = strings.TrimSpace(d.SystemID)
		if d.Name == "" {
			d.Name = "inverter" + strconv.Itoa(int(d.Address))
		}
	}

	// ------------------------------------------------------------
	// REPORTING
	// ------------------------------------------------------------

	p := &cfg.PVOutput
	p.APIKey = strings.TrimSpace(p.APIKey)
	if p.BaseURL == "" {
		p.BaseURL = DefaultPVOutputURL
	}
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.TimeoutMs <= 0 {
		p.TimeoutMs = DefaultHTTPTimeoutMs
	}
	if p.RequestsPerHour == nil {
		v := DefaultRequestsPerHour
		p.RequestsPerHour = &v
	}
	if p.LowQuotaWarning == nil {
		v := DefaultLowQuotaWarning
		p.LowQuotaWarning = &v
	}

	// ------------------------------------------------------------
	// WEATHER
	// ------------------------------------------------------------

	w := &cfg.Weather
	w.APIKey = strings.TrimSpace(w.APIKey)
	if w.BaseURL == "" {
		w.BaseURL = DefaultWeatherURL
	}
	w.BaseURL = strings.TrimRight(w.BaseURL, "/")
	if w.TimeoutMs <= 0 {
		w.TimeoutMs = DefaultHTTPTimeoutMs
	}

	// ------------------------------------------------------------
	// SCHEDULE (05:00–21:00)
	// ------------------------------------------------------------

	sc := &cfg.Schedule
	if sc.Timezone == "" {
		sc.Timezone = DefaultTimezone
	}
	if sc.StartHour == nil {
		v := DefaultStartHour
		sc.StartHour = &v
	}
	if sc.StopHour == nil {
		v := DefaultStopHour
		sc.StopHour = &v
	}
	if sc.RetryDelayS <= 0 {
		sc.RetryDelayS = DefaultRetryDelayS
	}
	if sc.PartialDelayS <= 0 {
		sc.PartialDelayS = DefaultPartialDelayS
	}

	// ------------------------------------------------------------
	// OPTIONAL SINKS
	// ------------------------------------------------------------

	if cfg.MQTT.Broker != "" && cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = DefaultMQTTTopic
	}
	cfg.MQTT.Topic = strings.TrimRight(cfg.MQTT.Topic, "/")

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}
