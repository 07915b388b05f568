package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTConfig describes the broker the controller publishes to.
type MQTTConfig struct {
	BrokerURL      string
	Username       string
	Password       string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
	Buffer         int
}

// MQTTSubscriber opens one MQTT connection per subscription. Automatic
// reconnect is disabled; reconnect policy belongs to the caller.
type MQTTSubscriber struct {
	cfg MQTTConfig
}

func NewMQTTSubscriber(cfg MQTTConfig) *MQTTSubscriber {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &MQTTSubscriber{cfg: cfg}
}

type mqttSubscription struct {
	*pipe
	client    mqtt.Client
	topic     string
	timeout   time.Duration
	closeOnce sync.Once
}

func (s *MQTTSubscriber) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	sub := &mqttSubscription{
		pipe:    newPipe(s.cfg.Buffer),
		topic:   topic,
		timeout: s.cfg.ConnectTimeout,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.clientID()).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			sub.fail(&TransportError{Op: "connection lost", Err: err})
		})

	client := mqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect(), s.cfg.ConnectTimeout); err != nil {
		client.Disconnect(0)
		return nil, &TransportError{Op: "connect", Err: err}
	}
	sub.client = client

	token := client.Subscribe(topic, s.cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
		sub.deliver(Message{
			Topic:    m.Topic(),
			Payload:  m.Payload(),
			Received: time.Now(),
		})
	})
	if err := waitToken(ctx, token, s.cfg.ConnectTimeout); err != nil {
		client.Disconnect(250)
		return nil, &TransportError{Op: "subscribe", Err: err}
	}
	return sub, nil
}

// Close unsubscribes and disconnects. Disconnect does not invoke the
// connection-lost handler, so Err reports ErrClosed afterwards.
func (s *mqttSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.fail(ErrClosed)
		if s.client.IsConnectionOpen() {
			token := s.client.Unsubscribe(s.topic)
			if !token.WaitTimeout(s.timeout) {
				err = &TransportError{Op: "unsubscribe", Err: errors.New("timeout")}
			} else if token.Error() != nil {
				err = &TransportError{Op: "unsubscribe", Err: token.Error()}
			}
		}
		s.client.Disconnect(250)
	})
	return err
}

func (s *MQTTSubscriber) clientID() string {
	prefix := s.cfg.ClientID
	if prefix == "" {
		prefix = "pumpstream"
	}
	// Unique per connection so a lingering session is never taken over.
	return prefix + "-" + uuid.NewString()[:8]
}

func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("timed out waiting for broker")
	}
}
