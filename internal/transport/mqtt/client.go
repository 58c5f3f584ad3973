// Package mqtt wraps the paho client for device traffic: the ingest
// subscription and command publishing.
package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"device_triggers/internal/logger"
)

// Handler receives one inbound message.
type Handler = func(topic string, payload []byte)

// conn is the part of paho.Client this package uses.
type conn interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
}

type Options struct {
	// BrokerURL accepts mqtt://, tcp://, ssl://, tls://, ws:// and wss://,
	// with optional user:password.
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
	// InsecureTLS skips broker certificate checks.
	InsecureTLS bool
}

type Client struct {
	cli conn
	qos byte
	log *logger.Logger
}

// brokerAddr maps a broker URL to the form paho expects.
func brokerAddr(u *url.URL) (string, error) {
	switch u.Scheme {
	case "mqtt", "tcp":
		return "tcp://" + u.Host, nil
	case "ssl", "tls", "mqtts":
		return "ssl://" + u.Host, nil
	case "ws", "wss":
		return u.Scheme + "://" + u.Host + u.Path, nil
	default:
		return "", fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}

func clientOptions(o Options, log *logger.Logger) (*paho.ClientOptions, error) {
	u, err := url.Parse(o.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	addr, err := brokerAddr(u)
	if err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(addr)
	if o.ClientID == "" {
		o.ClientID = "device-triggers-" + time.Now().Format("150405.000")
	}
	opts.SetClientID(o.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	if u.Scheme == "ssl" || u.Scheme == "tls" || u.Scheme == "mqtts" || u.Scheme == "wss" {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: o.InsecureTLS}) //nolint:gosec // opt-in via config
	}
	opts.OnConnect = func(paho.Client) { log.Infow("mqtt_connected", "broker", addr) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorw("mqtt_connection_lost", "err", err) }
	return opts, nil
}

// Dial connects to the broker.
func Dial(o Options, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	opts, err := clientOptions(o, log)
	if err != nil {
		return nil, err
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}

	cli := paho.NewClient(opts)
	t := cli.Connect()
	if !t.WaitTimeout(o.ConnectTimeout) {
		return nil, errors.New("mqtt connect timed out")
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return newClient(cli, o.QoS, log), nil
}

func newClient(c conn, qos byte, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{cli: c, qos: qos, log: log}
}

// wait blocks until the token completes or ctx is done.
func wait(ctx context.Context, t paho.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers h for topic, which may carry wildcards.
func (c *Client) Subscribe(ctx context.Context, topic string, h Handler) error {
	t := c.cli.Subscribe(topic, c.qos, func(_ paho.Client, m paho.Message) {
		h(m.Topic(), m.Payload())
	})
	if err := wait(ctx, t); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.log.Infow("mqtt_subscribed", "topic", topic)
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, topic string) error {
	if err := wait(ctx, c.cli.Unsubscribe(topic)); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", topic, err)
	}
	c.log.Infow("mqtt_unsubscribed", "topic", topic)
	return nil
}

// Publish sends payload to topic. It satisfies engine.CommandPublisher.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := wait(ctx, c.cli.Publish(topic, c.qos, false, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) Connected() bool { return c.cli.IsConnectionOpen() }

func (c *Client) Close() {
	c.cli.Disconnect(250)
}
