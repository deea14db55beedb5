// Package bus carries voice traffic over MQTT.
//
// A Client publishes transcribed requests on the request topic and waits for
// the correlated reply on the response topic, matched by session id. The
// underlying connection auto-reconnects with backoff. Pending waiters are not
// rescued by a reconnect; their own deadlines still apply.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Sentinel errors.
var (
	// ErrTimeout is returned when no reply arrived before the deadline.
	ErrTimeout = errors.New("bus: reply deadline exceeded")

	// ErrConnection is returned when the broker connection failed.
	ErrConnection = errors.New("bus: connection error")
)

// Config holds broker and topic configuration.
type Config struct {
	// BrokerURL is the MQTT broker address (e.g. "mqtt://localhost:1883").
	BrokerURL string `yaml:"broker_url" json:"broker_url"`

	// ClientID identifies this client to the broker.
	ClientID string `yaml:"client_id" json:"client_id"`

	// KeepAlive is the MQTT keepalive interval in seconds.
	KeepAlive uint16 `yaml:"keep_alive" json:"keep_alive"`

	// RequestTopic, ResponseTopic and StatusTopic override the defaults.
	RequestTopic  string `yaml:"request_topic" json:"request_topic"`
	ResponseTopic string `yaml:"response_topic" json:"response_topic"`
	StatusTopic   string `yaml:"status_topic" json:"status_topic"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BrokerURL:     "mqtt://localhost:1883",
		ClientID:      "foyer-voice",
		KeepAlive:     30,
		RequestTopic:  DefaultRequestTopic,
		ResponseTopic: DefaultResponseTopic,
		StatusTopic:   DefaultStatusTopic,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BrokerURL == "" {
		return fmt.Errorf("broker_url required")
	}
	if _, err := url.Parse(c.BrokerURL); err != nil {
		return fmt.Errorf("broker_url: %w", err)
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id required")
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.KeepAlive == 0 {
		out.KeepAlive = 30
	}
	if out.RequestTopic == "" {
		out.RequestTopic = DefaultRequestTopic
	}
	if out.ResponseTopic == "" {
		out.ResponseTopic = DefaultResponseTopic
	}
	if out.StatusTopic == "" {
		out.StatusTopic = DefaultStatusTopic
	}
	return out
}

// Client is the MQTT voice bus client.
type Client struct {
	cfg    Config
	logger *slog.Logger

	cm        *autopaho.ConnectionManager
	corr      *correlator
	connected atomic.Bool
}

// NewClient creates a Client. Call Connect before use.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bus: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bus")

	return &Client{
		cfg:    cfg.withDefaults(),
		logger: logger,
		corr:   newCorrelator(logger),
	}, nil
}

// Connect establishes the broker connection and subscribes to the response
// topic. The connection manager reconnects with backoff on its own; the
// response subscription is re-established on every connection up.
func (c *Client) Connect(ctx context.Context) error {
	broker, err := url.Parse(c.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	clientCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.connected.Store(true)
			c.logger.Info("broker connected", "broker", c.cfg.BrokerURL)

			subCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := cm.Subscribe(subCtx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: c.cfg.ResponseTopic, QoS: 1},
				},
			}); err != nil {
				c.logger.Error("response subscribe failed", "error", err)
			}
		},
		OnConnectError: func(err error) {
			c.connected.Store(false)
			c.logger.Warn("broker connect error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.handleInbound,
			},
			OnClientError: func(err error) {
				c.connected.Store(false)
				c.logger.Warn("client error", "error", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				c.connected.Store(false)
				c.logger.Warn("server disconnect", "reason_code", d.ReasonCode)
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, clientCfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	c.cm = cm

	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return nil
}

// handleInbound demultiplexes messages on the response topic.
func (c *Client) handleInbound(pr paho.PublishReceived) (bool, error) {
	if pr.Packet.Topic != c.cfg.ResponseTopic {
		return false, nil
	}

	var reply VoiceReply
	if err := json.Unmarshal(pr.Packet.Payload, &reply); err != nil {
		c.logger.Warn("malformed reply payload", "error", err)
		return true, nil
	}
	if reply.SessionID == "" {
		c.logger.Warn("reply missing session_id, dropping")
		return true, nil
	}

	c.corr.resolve(reply)
	return true, nil
}

// SendAndAwait publishes the request and blocks until the correlated reply
// arrives or the context deadline expires. On deadline the waiter is removed;
// a reply arriving afterwards is silently discarded.
func (c *Client) SendAndAwait(ctx context.Context, req VoiceRequest) (VoiceReply, error) {
	if c.cm == nil {
		return VoiceReply{}, fmt.Errorf("%w: not connected", ErrConnection)
	}
	if _, ok := ctx.Deadline(); !ok {
		return VoiceReply{}, fmt.Errorf("bus: SendAndAwait requires a deadline")
	}

	waiter, err := c.corr.register(req.SessionID)
	if err != nil {
		return VoiceReply{}, err
	}
	defer c.corr.remove(req.SessionID)

	payload, err := json.Marshal(req)
	if err != nil {
		return VoiceReply{}, fmt.Errorf("bus: marshal request: %w", err)
	}

	if _, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   c.cfg.RequestTopic,
		QoS:     1,
		Payload: payload,
	}); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return VoiceReply{}, ErrTimeout
		}
		return VoiceReply{}, fmt.Errorf("%w: publish: %v", ErrConnection, err)
	}

	c.logger.Debug("request published",
		"session_id", req.SessionID,
		"chars", len(req.Transcription),
	)

	select {
	case reply := <-waiter:
		return reply, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return VoiceReply{}, ErrTimeout
		}
		return VoiceReply{}, ctx.Err()
	}
}

// PublishStatus publishes the orchestrator status, QoS 0 fire-and-forget.
func (c *Client) PublishStatus(ctx context.Context, status Status) error {
	if c.cm == nil {
		return fmt.Errorf("%w: not connected", ErrConnection)
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("bus: marshal status: %w", err)
	}

	if _, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   c.cfg.StatusTopic,
		QoS:     0,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("%w: publish status: %v", ErrConnection, err)
	}
	return nil
}

// Connected reports whether the broker connection is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	if c.cm == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return c.cm.Disconnect(ctx)
}
