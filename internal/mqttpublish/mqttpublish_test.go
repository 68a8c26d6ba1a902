package mqttpublish

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/audiorelay/streamcore/internal/streamcore"
)

type recordedPublish struct {
	topic   string
	payload string
}

type fakeMQTTClient struct {
	mu        sync.Mutex
	connected bool
	published []recordedPublish
}

func (f *fakeMQTTClient) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeMQTTClient) IsConnected() bool                 { return f.connected }
func (f *fakeMQTTClient) Disconnect()                       { f.connected = false }

func (f *fakeMQTTClient) Publish(ctx context.Context, topic, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, recordedPublish{topic: topic, payload: payload})
	return nil
}

func (f *fakeMQTTClient) last() (recordedPublish, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return recordedPublish{}, false
	}
	return f.published[len(f.published)-1], true
}

func TestPublisherSkipsPublishWhenDisconnected(t *testing.T) {
	t.Parallel()
	client := &fakeMQTTClient{}
	p := NewPublisher(client, "streamcore")
	p.OnStateChanged(streamcore.StatePlaying)

	if _, ok := client.last(); ok {
		t.Fatal("expected no publish while disconnected")
	}
}

func TestPublisherPublishesStateUnderTopicPrefix(t *testing.T) {
	t.Parallel()
	client := &fakeMQTTClient{connected: true}
	p := NewPublisher(client, "streamcore")
	p.OnStateChanged(streamcore.StatePlaying)

	got, ok := client.last()
	if !ok {
		t.Fatal("expected a publish")
	}
	if got.topic != "streamcore/state" {
		t.Fatalf("expected topic streamcore/state, got %q", got.topic)
	}
	var decoded stateEvent
	if err := json.Unmarshal([]byte(got.payload), &decoded); err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if decoded.State != "Playing" {
		t.Fatalf("expected state Playing, got %q", decoded.State)
	}
}

func TestPublisherPublishesErrorWithKindAndDescription(t *testing.T) {
	t.Parallel()
	client := &fakeMQTTClient{connected: true}
	p := NewPublisher(client, "streamcore")
	p.OnError(streamcore.ErrorNetwork, "connection reset")

	got, ok := client.last()
	if !ok {
		t.Fatal("expected a publish")
	}
	if !strings.Contains(got.payload, "connection reset") {
		t.Fatalf("expected the description in the payload, got %q", got.payload)
	}
}

func TestPublisherPublishesMetadataVerbatim(t *testing.T) {
	t.Parallel()
	client := &fakeMQTTClient{connected: true}
	p := NewPublisher(client, "")
	p.OnMetaDataAvailable(map[string]string{"StreamTitle": "Artist - Song"})

	got, ok := client.last()
	if !ok {
		t.Fatal("expected a publish")
	}
	if got.topic != "metadata" {
		t.Fatalf("expected bare topic when prefix is empty, got %q", got.topic)
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(got.payload), &decoded); err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if decoded["StreamTitle"] != "Artist - Song" {
		t.Fatalf("expected round-tripped metadata, got %v", decoded)
	}
}

func TestFanoutForwardsToEveryDelegateIgnoringNil(t *testing.T) {
	t.Parallel()
	clientA := &fakeMQTTClient{connected: true}
	clientB := &fakeMQTTClient{connected: true}
	a := NewPublisher(clientA, "a")
	b := NewPublisher(clientB, "b")

	fanout := NewFanout(a, nil, b)
	fanout.OnBufferEmpty()

	if _, ok := clientA.last(); !ok {
		t.Fatal("expected delegate a to receive the event")
	}
	if _, ok := clientB.last(); !ok {
		t.Fatal("expected delegate b to receive the event")
	}
}
