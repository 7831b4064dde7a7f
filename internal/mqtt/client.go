package mqtt

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"roomsense/internal/config"
	"roomsense/internal/core/port"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const defaultPublishTimeout = 5 * time.Second

// MessageHandler receives every inbound broker message.
type MessageHandler func(topic string, payload []byte)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.MQTT))
	opts.SetClientID(fmt.Sprintf("roomsense_%d", rand.Intn(10000)))
	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.SetKeepAlive(time.Duration(cfg.MQTT.KeepAliveSecs) * time.Second)
	// reconnect policy is owned by the broker actor (fixed delay), not
	// by the paho client
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	return opts
}

func brokerURL(cfg config.MQTTConfig) string {
	if cfg.Path != "" {
		scheme := "ws"
		if cfg.UseTLS {
			scheme = "wss"
		}
		return fmt.Sprintf("%s://%s:%d%s", scheme, cfg.Host, cfg.Port, cfg.Path)
	}
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

// Client wraps the paho client behind the BrokerChannel port. Publish
// and Subscribe block up to the configured timeout; Connect reports
// completion through a continuation so the caller's event loop never
// blocks on the network.
type Client struct {
	client     mqtt.Client
	cfg        config.MQTTConfig
	Topics     TopicScheme
	pubTimeout time.Duration
}

func CreateClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnect func(),
	onConnectionLost func(error), onMessage MessageHandler) *Client {
	if onConnect != nil {
		opts.OnConnect = func(_ mqtt.Client) {
			onConnect()
		}
	}
	if onConnectionLost != nil {
		opts.OnConnectionLost = func(_ mqtt.Client, err error) {
			onConnectionLost(err)
		}
	}
	if onMessage != nil {
		opts.SetDefaultPublishHandler(func(_ mqtt.Client, m mqtt.Message) {
			onMessage(m.Topic(), m.Payload())
		})
	}
	pubTimeout := defaultPublishTimeout
	if cfg.MQTT.PublishTimeoutMillis > 0 {
		pubTimeout = time.Duration(cfg.MQTT.PublishTimeoutMillis) * time.Millisecond
	}
	return &Client{
		client:     mqtt.NewClient(opts),
		cfg:        cfg.MQTT,
		Topics:     NewTopicScheme(cfg.MQTT),
		pubTimeout: pubTimeout,
	}
}

// Connected is the single connectivity predicate. True only while the
// network session is actually open.
func (c *Client) Connected() bool {
	return c.client.IsConnectionOpen()
}

func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(c.pubTimeout) {
		return errors.New("MQTT publish timed out")
	}
	return token.Error()
}

func (c *Client) Subscribe(topic string) error {
	token := c.client.Subscribe(topic, 1, nil)
	if !token.WaitTimeout(c.pubTimeout) {
		return errors.New("MQTT subscribe timed out")
	}
	return token.Error()
}

func (c *Client) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *Client) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

// ensure interface compliance
var _ port.BrokerChannel = (*Client)(nil)
