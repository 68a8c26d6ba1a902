// Package mqttpublish adapts an AudioPipeline's Delegate callbacks onto
// internal/mqtt.Client, publishing lifecycle and metadata events under a
// configurable topic prefix so a home-automation or dashboard consumer can
// observe a running stream without polling internal/metricsserver.
package mqttpublish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/audiorelay/streamcore/internal/mqtt"
	"github.com/audiorelay/streamcore/internal/streamcore"
)

// Publisher wraps an mqtt.Client and implements streamcore.Delegate,
// forwarding each event except OnSamplesAvailable as a JSON payload
// under TopicPrefix/<event>.
// Construct one per AudioPipeline and wire it in as the pipeline's
// Delegate, or compose it with another Delegate via Fanout.
type Publisher struct {
	client       mqtt.Client
	topicPrefix  string
	publishCtx   context.Context
	publishCtxMu sync.Mutex
}

// NewPublisher builds a Publisher. Publishes use context.Background()
// until SetContext supplies a context tied to the pipeline's lifetime.
func NewPublisher(client mqtt.Client, topicPrefix string) *Publisher {
	return &Publisher{client: client, topicPrefix: topicPrefix, publishCtx: context.Background()}
}

// SetContext replaces the context used for subsequent publishes, e.g.
// once the pipeline's own context becomes available after Open.
func (p *Publisher) SetContext(ctx context.Context) {
	p.publishCtxMu.Lock()
	defer p.publishCtxMu.Unlock()
	p.publishCtx = ctx
}

func (p *Publisher) ctx() context.Context {
	p.publishCtxMu.Lock()
	defer p.publishCtxMu.Unlock()
	return p.publishCtx
}

func (p *Publisher) topic(event string) string {
	if p.topicPrefix == "" {
		return event
	}
	return p.topicPrefix + "/" + event
}

func (p *Publisher) publish(event string, payload any) {
	if !p.client.IsConnected() {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = p.client.Publish(p.ctx(), p.topic(event), string(body))
}

type stateEvent struct {
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

func (p *Publisher) OnStateChanged(state streamcore.State) {
	p.publish("state", stateEvent{State: state.String(), Timestamp: timestamp()})
}

type errorEvent struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

func (p *Publisher) OnError(kind streamcore.ErrorKind, description string) {
	p.publish("error", errorEvent{Kind: kind.String(), Description: description, Timestamp: timestamp()})
}

func (p *Publisher) OnMetaDataAvailable(meta map[string]string) {
	p.publish("metadata", meta)
}

type bitRateEvent struct {
	Timestamp string `json:"timestamp"`
}

func (p *Publisher) OnBitRateAvailable() {
	p.publish("bitrate", bitRateEvent{Timestamp: timestamp()})
}

type receivedSizeEvent struct {
	Bytes uint64 `json:"bytes"`
}

func (p *Publisher) OnReceivedSize(bytes uint64) {
	p.publish("content-length", receivedSizeEvent{Bytes: bytes})
}

func (p *Publisher) OnBufferEmpty() {
	p.publish("buffer-empty", struct{}{})
}

// OnSamplesAvailable is intentionally a no-op: PCM frames are far too
// high-frequency and too large for an MQTT broker, so no audio is
// published.
func (p *Publisher) OnSamplesAvailable(pcm []byte, desc streamcore.PacketDesc) {}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

var _ streamcore.Delegate = (*Publisher)(nil)

// Fanout broadcasts every Delegate callback to multiple delegates, so a
// Publisher can run alongside the pipeline's primary Delegate (e.g. a CLI
// or GUI) without either one needing to know about the other.
type Fanout struct {
	delegates []streamcore.Delegate
}

// NewFanout builds a Delegate that forwards to every one of delegates, in
// order, ignoring nil entries.
func NewFanout(delegates ...streamcore.Delegate) *Fanout {
	nonNil := make([]streamcore.Delegate, 0, len(delegates))
	for _, d := range delegates {
		if d != nil {
			nonNil = append(nonNil, d)
		}
	}
	return &Fanout{delegates: nonNil}
}

func (f *Fanout) OnStateChanged(state streamcore.State) {
	for _, d := range f.delegates {
		d.OnStateChanged(state)
	}
}

func (f *Fanout) OnError(kind streamcore.ErrorKind, description string) {
	for _, d := range f.delegates {
		d.OnError(kind, description)
	}
}

func (f *Fanout) OnMetaDataAvailable(meta map[string]string) {
	for _, d := range f.delegates {
		d.OnMetaDataAvailable(meta)
	}
}

func (f *Fanout) OnSamplesAvailable(pcm []byte, desc streamcore.PacketDesc) {
	for _, d := range f.delegates {
		d.OnSamplesAvailable(pcm, desc)
	}
}

func (f *Fanout) OnBitRateAvailable() {
	for _, d := range f.delegates {
		d.OnBitRateAvailable()
	}
}

func (f *Fanout) OnReceivedSize(bytes uint64) {
	for _, d := range f.delegates {
		d.OnReceivedSize(bytes)
	}
}

func (f *Fanout) OnBufferEmpty() {
	for _, d := range f.delegates {
		d.OnBufferEmpty()
	}
}

var _ streamcore.Delegate = (*Fanout)(nil)
