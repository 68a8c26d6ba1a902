package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/audiorelay/streamcore/internal/conf"
)

func newTestClient(broker string) *client {
	c := NewClient(conf.MQTTConfig{
		Broker:   broker,
		ClientID: "streamcore-test",
	})
	return c.(*client)
}

func TestNewClientDefaultsClientID(t *testing.T) {
	t.Parallel()
	c := NewClient(conf.MQTTConfig{Broker: "tcp://localhost:1883"})
	cc := c.(*client)
	if cc.config.ClientID != "streamcore" {
		t.Fatalf("expected default client id 'streamcore', got %q", cc.config.ClientID)
	}
}

func TestConnectCooldown(t *testing.T) {
	t.Parallel()
	c := newTestClient("tcp://unresolvable.invalid:1883")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = c.Connect(ctx) // first attempt fails on DNS resolution, still records lastConnAttempt

	err := c.Connect(ctx)
	if err == nil {
		t.Fatal("expected second immediate Connect to fail due to cooldown")
	}
}

func TestConnectInvalidBrokerURL(t *testing.T) {
	t.Parallel()
	c := newTestClient("://not-a-url")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.Connect(ctx); err == nil {
		t.Fatal("expected Connect to fail for an invalid broker URL")
	}
	if c.IsConnected() {
		t.Fatal("client should not report connected after a failed Connect")
	}
}

func TestPublishWithoutConnection(t *testing.T) {
	t.Parallel()
	c := newTestClient("tcp://localhost:1883")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.Publish(ctx, "streamcore/test", "hello"); err == nil {
		t.Fatal("expected Publish to fail when not connected")
	}
}

func TestDisconnectWithoutConnectIsSafe(t *testing.T) {
	t.Parallel()
	c := newTestClient("tcp://localhost:1883")
	c.Disconnect()
	if c.IsConnected() {
		t.Fatal("client should not be connected")
	}
}
