package sensor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/iliyamo/parking-slot-reservation/internal/config"
	"github.com/iliyamo/parking-slot-reservation/internal/logging"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttKeepAlive      = 60 * time.Second
	mqttQuiesceMs      = 1000
	mqttApplyTimeout   = 5 * time.Second
)

// ErrConnectionFailed is returned when the broker cannot be reached in time.
var ErrConnectionFailed = errors.New("mqtt connection failed")

// MQTTSubscriber applies occupancy reports published by bay sensors.
// The subscription is renewed on every reconnect.
type MQTTSubscriber struct {
	client   pahomqtt.Client
	cfg      config.SensorConfig
	reporter Reporter
	log      *logging.Logger
}

func buildClientOptions(cfg config.SensorConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBrokerURL)
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetKeepAlive(mqttKeepAlive)
	if strings.HasPrefix(cfg.MQTTBrokerURL, "ssl://") || strings.HasPrefix(cfg.MQTTBrokerURL, "tls://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// NewMQTTSubscriber connects to the broker and subscribes to cfg.MQTTTopic.
func NewMQTTSubscriber(cfg config.SensorConfig, reporter Reporter, log *logging.Logger) (*MQTTSubscriber, error) {
	s := &MQTTSubscriber{cfg: cfg, reporter: reporter, log: log.With("component", "mqtt-sensor")}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		if err := s.subscribe(c); err != nil {
			s.log.Error("subscribe failed", "topic", cfg.MQTTTopic, "error", err)
			return
		}
		s.log.Info("subscribed to sensor topic", "topic", cfg.MQTTTopic)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.log.Warn("mqtt connection lost", "error", err)
	})

	s.client = pahomqtt.NewClient(opts)
	tok := s.client.Connect()
	if !tok.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, mqttConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return s, nil
}

func (s *MQTTSubscriber) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), mqttApplyTimeout)
	defer cancel()
	if err := s.Handle(ctx, msg.Topic(), msg.Payload()); err != nil {
		s.log.Warn("occupancy report rejected", "topic", msg.Topic(), "error", err)
	}
}

// Handle parses and applies one message.
func (s *MQTTSubscriber) Handle(ctx context.Context, topic string, body []byte) error {
	r, err := ParseReport(body, SlotIDFromTopic(s.cfg.MQTTTopic, topic))
	if err != nil {
		return err
	}
	updated, err := s.reporter.ReportOccupancy(ctx, r.SlotID, r.Occupied)
	if err != nil {
		return err
	}
	s.log.Debug("occupancy applied", "slot_id", updated.ID, "occupied", r.Occupied, "state", updated.State.String())
	return nil
}

// subscribe runs on every (re)connect.  A token that does not complete in
// time counts as a failure.
func (s *MQTTSubscriber) subscribe(c pahomqtt.Client) error {
	tok := c.Subscribe(s.cfg.MQTTTopic, s.cfg.MQTTQoS, s.onMessage)
	if !tok.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("subscribe to %s: timeout after %v", s.cfg.MQTTTopic, mqttConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.MQTTTopic, err)
	}
	return nil
}

// Close disconnects after letting in-flight work finish.
func (s *MQTTSubscriber) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	s.client.Unsubscribe(s.cfg.MQTTTopic).WaitTimeout(time.Second)
	s.client.Disconnect(mqttQuiesceMs)
	return nil
}
