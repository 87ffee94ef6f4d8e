// internal/writer/builder.go
package writer

import (
	"time"

	"github.com/sirupsen/logrus"

	cfg "github.com/tamzrod/pv-reporter/internal/config"
	"github.com/tamzrod/pv-reporter/internal/metrics"
	wmqtt "github.com/tamzrod/pv-reporter/internal/writer/mqtt"
	"github.com/tamzrod/pv-reporter/internal/writer/pvoutput"
)

// Build creates the reporting client, connects the optional mirror and
// returns a Writer over both. A mirror that cannot connect is skipped.
// Assumes config has already passed validation.
func Build(c *cfg.Config, logger logrus.FieldLogger, m *metrics.Metrics) (*Writer, error) {
	p := c.PVOutput
	perHour, lowWarning := p.Quota()

	client, err := pvoutput.New(
		pvoutput.Config{
			APIKey:          p.APIKey,
			BaseURL:         p.BaseURL,
			Cumulative:      p.Cumulative,
			MaxAttempts:     p.MaxAttempts,
			Timeout:         time.Duration(p.TimeoutMs) * time.Millisecond,
			RequestsPerHour: perHour,
			LowQuotaWarning: lowWarning,
		},
		pvoutput.WithLogger(logger),
		pvoutput.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	// A nil *Publisher must not reach New as a non-nil interface.
	if c.MQTT.Broker == "" {
		return New(client, nil, logger)
	}

	pub, err := wmqtt.Connect(wmqtt.Config{
		Broker:   c.MQTT.Broker,
		Topic:    c.MQTT.Topic,
		ClientID: c.MQTT.ClientID,
		Username: c.MQTT.Username,
		Password: c.MQTT.Password,
	}, logger)
	if err != nil {
		// the mirror is optional; reporting goes on without it
		logger.WithError(err).Warn("mqtt mirror disabled")
		return New(client, nil, logger)
	}

	return New(client, pub, logger)
}
