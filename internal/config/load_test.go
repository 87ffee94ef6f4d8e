// internal/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/pv-reporter/internal/fault"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB0
devices:
  - address: 1
    system_id: "12345"
pvoutput:
  api_key: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 8, cfg.Serial.DataBits)
	assert.Equal(t, "N", cfg.Serial.Parity)
	assert.Equal(t, 1, cfg.Serial.StopBits)
	assert.Equal(t, 1000, cfg.Serial.TimeoutMs)

	start, stop := cfg.Schedule.Hours()
	assert.Equal(t, 5, start)
	assert.Equal(t, 21, stop)
	assert.Equal(t, 60, cfg.Schedule.RetryDelayS)

	assert.Equal(t, "inverter1", cfg.Devices[0].Name)
	assert.Equal(t, 3, cfg.PVOutput.MaxAttempts)
	assert.Equal(t, DefaultPVOutputURL, cfg.PVOutput.BaseURL)
	assert.True(t, cfg.PVOutput.DailyOutput())
	assert.False(t, cfg.WeatherEnabled())
	assert.Empty(t, cfg.MQTT.Topic)

	perHour, low := cfg.PVOutput.Quota()
	assert.Equal(t, DefaultRequestsPerHour, perHour)
	assert.Equal(t, DefaultLowQuotaWarning, low)
}

func TestLoad_ExplicitZeroQuotaKept(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB0
devices:
  - address: 1
    system_id: "12345"
pvoutput:
  api_key: secret
  requests_per_hour: 0
  low_quota_warning: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	perHour, low := cfg.PVOutput.Quota()
	assert.Equal(t, 0, perHour, "0 disables the local limiter")
	assert.Equal(t, 0, low)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PV_API_KEY", "from-env")
	t.Setenv("PV_SYSTEM_ID", "777")

	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB1
devices:
  - name: roof
    address: 3
    system_id: ${PV_SYSTEM_ID}
pvoutput:
  api_key: ${PV_API_KEY}
  cumulative: true
  report_daily_output: false
schedule:
  timezone: America/Toronto
  start_hour: 6
  stop_hour: 20
mqtt:
  broker: tcp://127.0.0.1:1883
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.PVOutput.APIKey)
	assert.Equal(t, "777", cfg.Devices[0].SystemID)
	assert.True(t, cfg.PVOutput.Cumulative)
	assert.False(t, cfg.PVOutput.DailyOutput())
	assert.Equal(t, "America/Toronto", cfg.Schedule.Timezone)
	assert.Equal(t, DefaultMQTTTopic, cfg.MQTT.Topic)

	start, stop := cfg.Schedule.Hours()
	assert.Equal(t, 6, start)
	assert.Equal(t, 20, stop)
}

func TestLoad_MissingCredentialsIsConfigurationFault(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB0
devices:
  - address: 1
    system_id: "12345"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Configuration))
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB0
  speed: 9600
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Configuration))
}
