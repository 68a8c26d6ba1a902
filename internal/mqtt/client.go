// Package mqtt publishes pipeline lifecycle events (state changes, metadata
// updates, playback errors) to an MQTT broker so external dashboards and
// home-automation systems can observe a running stream without polling
// the metrics server.
package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/audiorelay/streamcore/internal/conf"
	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/logging"
)

// Client publishes pipeline events to an MQTT broker. Implementations must
// be safe for concurrent use.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic, payload string) error
	IsConnected() bool
	Disconnect()
}

// Config is the subset of conf.MQTTConfig the client actually consumes.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

const reconnectCooldown = time.Minute

// client implements Client on top of eclipse/paho.mqtt.golang.
type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	reconnectTimer  *time.Timer
	reconnectOnce   sync.Once
	reconnectStop   chan struct{}
}

// NewClient builds an MQTT client from the pipeline's MQTTConfig. Callers
// should check cfg.Enabled before using the returned client; NewClient
// itself does not look at it.
func NewClient(cfg conf.MQTTConfig) Client {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "streamcore"
	}
	return &client{
		config: Config{
			Broker:   cfg.Broker,
			ClientID: clientID,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		reconnectStop: make(chan struct{}),
	}
}

// Connect resolves the broker hostname and establishes a session. It
// refuses to attempt a connection within reconnectCooldown of the previous
// attempt.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < reconnectCooldown {
		return fmt.Errorf("mqtt: connection attempt too recent")
	}
	c.lastConnAttempt = time.Now()

	if err := c.resolveBrokerHostname(); err != nil {
		return streamerrors.New(fmt.Errorf("resolve broker hostname: %w", err)).
			Component("mqtt").
			Category(streamerrors.CategoryMQTTConnection).
			Build()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetConnectRetry(true)

	c.internalClient = mqtt.NewClient(opts)

	done := make(chan error, 1)
	go func() {
		token := c.internalClient.Connect()
		token.Wait()
		done <- token.Error()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return streamerrors.New(fmt.Errorf("connect: %w", err)).
				Component("mqtt").
				Category(streamerrors.CategoryMQTTConnection).
				Build()
		}
	}
	return nil
}

func (c *client) resolveBrokerHostname() error {
	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("broker URL %q has no host", c.config.Broker)
	}
	if _, err := net.LookupHost(host); err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	return nil
}

// Publish sends payload to topic, respecting ctx for cancellation.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	connected := c.internalClient != nil && c.internalClient.IsConnected()
	internal := c.internalClient
	c.mu.Unlock()

	if !connected {
		return streamerrors.New(fmt.Errorf("mqtt: not connected")).
			Component("mqtt").
			Category(streamerrors.CategoryMQTTPublish).
			Build()
	}

	done := make(chan error, 1)
	go func() {
		token := internal.Publish(topic, 0, false, payload)
		token.Wait()
		done <- token.Error()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// IsConnected reports the current connection state.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect tears down the session and stops any pending reconnect timer.
func (c *client) Disconnect() {
	c.mu.Lock()
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(250)
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.mu.Unlock()

	c.reconnectOnce.Do(func() { close(c.reconnectStop) })
}

func (c *client) onConnect(mqtt.Client) {
	if log := logging.ForService("mqtt"); log != nil {
		log.Info("connected to broker", "broker", c.config.Broker)
	}
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	if log := logging.ForService("mqtt"); log != nil {
		log.Warn("connection lost, scheduling reconnect", "broker", c.config.Broker, "error", err)
	}
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectTimer = time.AfterFunc(reconnectCooldown, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

func (c *client) reconnectWithBackoff() {
	backoff := time.Second
	const maxBackoff = 5 * time.Minute

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			c.startReconnectTimer()
			return
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-c.reconnectStop:
			return
		}
	}
}
