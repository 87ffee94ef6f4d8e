// internal/writer/mqtt/publisher.go
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/pv-reporter/internal/decoder"
	"github.com/tamzrod/pv-reporter/internal/status"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"

	publishTimeout = 5 * time.Second
)

// Config is the broker config.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// conn is the part of paho.Client the publisher uses.
type conn interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher mirrors readings onto an MQTT broker as retained messages.
type Publisher struct {
	topic string
	c     conn
	log   logrus.FieldLogger
}

// Connect dials the broker and announces availability. The broker
// publishes "offline" on the status topic if the process goes away.
func Connect(cfg Config, logger logrus.FieldLogger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}
	topic := strings.TrimRight(cfg.Topic, "/")
	if topic == "" {
		return nil, errors.New("mqtt: topic required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		// brokers drop the older session on a client id clash
		clientID = "pv-reporter-" + uuid.NewString()[:8]
	}

	statusTopic := topic + "/status"

	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetWill(statusTopic, statusOffline, 0, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(c paho.Client) {
		logger.WithField("broker", cfg.Broker).Info("mqtt connected")
		c.Publish(statusTopic, 0, true, statusOnline).WaitTimeout(publishTimeout)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.WithError(err).Warn("mqtt connection lost")
	}

	c := paho.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt: connect %s: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, err)
	}

	return newPublisher(topic, c, logger), nil
}

func newPublisher(topic string, c conn, logger logrus.FieldLogger) *Publisher {
	return &Publisher{topic: topic, c: c, log: logger}
}

// statePayload is the JSON document retained per device.
type statePayload struct {
	Device string `json:"device"`
	Target string `json:"target"`
	decoder.Reading
	StatusText string `json:"status_text"`
}

// PublishReading publishes the reading retained at <topic>/<device>/state.
func (p *Publisher) PublishReading(device, target string, r decoder.Reading) error {
	body, err := json.Marshal(statePayload{
		Device:     device,
		Target:     target,
		Reading:    r,
		StatusText: decoder.StatusText(r.Status),
	})
	if err != nil {
		return fmt.Errorf("mqtt: encode state: %w", err)
	}
	return p.publish(p.topic+"/"+device+"/state", body)
}

// PublishIdentity publishes the device identity retained at
// <topic>/<device>/identity.
func (p *Publisher) PublishIdentity(device string, id decoder.DeviceIdentity) error {
	body, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("mqtt: encode identity: %w", err)
	}
	return p.publish(p.topic+"/"+device+"/identity", body)
}

type healthPayload struct {
	Health              string     `json:"health"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	SecondsInError      int        `json:"seconds_in_error"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
}

// PublishHealth publishes the device health retained at
// <topic>/<device>/health.
func (p *Publisher) PublishHealth(device string, s status.Snapshot, secondsInError int) error {
	doc := healthPayload{
		Health:              status.HealthText(s.Health),
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastError:           s.LastError,
		SecondsInError:      secondsInError,
	}
	if !s.LastSuccess.IsZero() {
		ls := s.LastSuccess
		doc.LastSuccess = &ls
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("mqtt: encode health: %w", err)
	}
	return p.publish(p.topic+"/"+device+"/health", body)
}

// Close marks the reporter offline and disconnects.
func (p *Publisher) Close() error {
	err := p.publish(p.topic+"/status", []byte(statusOffline))
	p.c.Disconnect(250)
	return err
}

func (p *Publisher) publish(topic string, body []byte) error {
	tok := p.c.Publish(topic, 0, true, body)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish %s: timeout", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	p.log.WithField("topic", topic).Debug("mqtt published")
	return nil
}
