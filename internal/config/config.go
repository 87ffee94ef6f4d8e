// internal/config/config.go
package config

type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Devices  []DeviceConfig `yaml:"devices"`
	PVOutput PVOutputConfig `yaml:"pvoutput"`
	Weather  WeatherConfig  `yaml:"weather"`
	Schedule ScheduleConfig `yaml:"schedule"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Port      string `yaml:"port"`
	BaudRate  int    `yaml:"baud_rate"`
	DataBits  int    `yaml:"data_bits"`
	Parity    string `yaml:"parity"`
	StopBits  int    `yaml:"stop_bits"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- DEVICE ----

// DeviceConfig pairs one inverter address with its reporting target.
type DeviceConfig struct {
	Name     string `yaml:"name"`
	Address  uint8  `yaml:"address"`
	SystemID string `yaml:"system_id"`
}

// ---- REPORTING ----

type PVOutputConfig struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Cumulative        bool   `yaml:"cumulative"`
	MaxAttempts       int    `yaml:"max_attempts"`
	TimeoutMs         int    `yaml:"timeout_ms"`
	RequestsPerHour   *int   `yaml:"requests_per_hour"` // 0 disables the local limiter
	LowQuotaWarning   *int   `yaml:"low_quota_warning"` // 0 warns only when exhausted
	ReportDailyOutput *bool  `yaml:"report_daily_output"`
}

// ---- WEATHER ----

// WeatherConfig is optional; an empty APIKey disables enrichment.
type WeatherConfig struct {
	APIKey    string   `yaml:"api_key"`
	BaseURL   string   `yaml:"base_url"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
	TimeoutMs int      `yaml:"timeout_ms"`
}

// ---- SCHEDULE ----

type ScheduleConfig struct {
	Timezone      string `yaml:"timezone"`
	StartHour     *int   `yaml:"start_hour"`
	StopHour      *int   `yaml:"stop_hour"`
	RetryDelayS   int    `yaml:"retry_delay_s"`
	PartialDelayS int    `yaml:"partial_delay_s"`
}

// ---- OPTIONAL SINKS ----

// MQTTConfig is optional; an empty Broker disables publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Hours returns the active window after Normalize.
func (s ScheduleConfig) Hours() (start, stop int) {
	if s.StartHour != nil {
		start = *s.StartHour
	}
	if s.StopHour != nil {
		stop = *s.StopHour
	}
	return start, stop
}

// Quota returns the local request budget and low-quota threshold after
// Normalize.
func (p PVOutputConfig) Quota() (perHour, lowWarning int) {
	if p.RequestsPerHour != nil {
		perHour = *p.RequestsPerHour
	}
	if p.LowQuotaWarning != nil {
		lowWarning = *p.LowQuotaWarning
	}
	return perHour, lowWarning
}

// DailyOutput reports whether end-of-day output reporting is on.
func (p PVOutputConfig) DailyOutput() bool {
	return p.ReportDailyOutput == nil || *p.ReportDailyOutput
}

// WeatherEnabled reports whether a weather key is configured.
func (c *Config) WeatherEnabled() bool {
	return c.Weather.APIKey != ""
}
