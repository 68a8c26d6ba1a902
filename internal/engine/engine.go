// Package engine wires the streamcore library into a runnable program: it
// is the only place outside streamcore itself that constructs a concrete
// AudioPipeline from a conf.Config, choosing the Parser/Converter/Sink
// implementation for each container format and output backend.
package engine

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/audiorelay/streamcore/internal/cachestore"
	"github.com/audiorelay/streamcore/internal/conf"
	streamerrors "github.com/audiorelay/streamcore/internal/errors"
	"github.com/audiorelay/streamcore/internal/logging"
	"github.com/audiorelay/streamcore/internal/metricsserver"
	"github.com/audiorelay/streamcore/internal/mqtt"
	"github.com/audiorelay/streamcore/internal/mqttpublish"
	"github.com/audiorelay/streamcore/internal/notify"
	"github.com/audiorelay/streamcore/internal/streamcore"
	"github.com/audiorelay/streamcore/internal/streamcore/container"
	"github.com/audiorelay/streamcore/internal/streamcore/input"
	"github.com/audiorelay/streamcore/internal/streamcore/sink"
)

// Engine bundles a running AudioPipeline with the ambient services a
// long-lived CLI session needs around it: metrics, MQTT event
// publishing, failure notifications, and playback-position memory.
type Engine struct {
	Pipeline *streamcore.AudioPipeline
	Metrics  *metricsserver.Server
	Cache    *cachestore.Store

	mqttClient mqtt.Client
	notifier   *notify.Notifier
}

// NewEngine assembles every component named in cfg and wires them
// together behind a single AudioPipeline, ready for SetURL/Open.
// hostDelegate, if non-nil, additionally receives every pipeline event
// alongside the engine's own MQTT/notify/cache plumbing.
func NewEngine(cfg *conf.Config, hostDelegate streamcore.Delegate) (*Engine, error) {
	if err := conf.Validate(cfg); err != nil {
		return nil, err
	}

	cacheStore := cachestore.New()

	var mqttClient mqtt.Client
	var mqttPublisher *mqttpublish.Publisher
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(cfg.MQTT)
		mqttPublisher = mqttpublish.NewPublisher(mqttClient, cfg.MQTT.Topic)
	}

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		return nil, err
	}

	metrics := metricsserver.NewMetrics()
	health := &metricsserver.HealthStatus{}
	health.Set(false, "not yet opened")
	metricsSrv := metricsserver.New(cfg.MetricsAddr, metrics, health)

	engine := &Engine{Metrics: metricsSrv, Cache: cacheStore, mqttClient: mqttClient, notifier: notifier}

	delegate := &engineDelegate{
		health:   health,
		metrics:  metrics,
		notifier: notifier,
		fanout:   mqttpublish.NewFanout(mqttPublisher, hostDelegate),
	}

	restClient := resty.New()
	restClient.SetTimeout(cfg.HTTPTimeout)

	inputFactory := input.NewFactory(input.Config{
		RestClient: restClient,
		Http: input.HttpConfig{
			UserAgent:                 cfg.UserAgent,
			DefaultContentType:        cfg.DefaultContentType,
			StrictContentTypeChecking: cfg.StrictContentTypeChecking,
			Timeout:                   cfg.HTTPTimeout,
		},
		Caching: cachingConfig(cfg),
		Ftp:     input.FtpConfig{Timeout: cfg.HTTPTimeout},
		Sftp:    input.SftpConfig{Timeout: cfg.HTTPTimeout},
	}, delegate)

	parserFactory := func(contentType string) (streamcore.Parser, error) {
		return selectParser(contentType)
	}
	converterFactory := func(source streamcore.SourceFormat, dest streamcore.DestFormat) (streamcore.Converter, error) {
		return selectConverter(source)
	}
	sinkFactory := func(cfg *conf.Config) (streamcore.OutputSink, error) {
		return selectSink(cfg)
	}

	engine.Pipeline = streamcore.New(cfg, delegate, inputFactory, parserFactory, converterFactory, sinkFactory)
	return engine, nil
}

func cachingConfig(cfg *conf.Config) *input.CachingConfig {
	if !cfg.CacheEnabled {
		return nil
	}
	return &input.CachingConfig{
		Directory:         cfg.CacheDirectory,
		MaxDiskCacheBytes: cfg.MaxDiskCacheBytes,
		MinFreeDiskBytes:  cfg.MinFreeDiskBytes,
	}
}

func selectParser(contentType string) (streamcore.Parser, error) {
	switch {
	case containsFold(contentType, "wav"):
		return container.NewWavParser(), nil
	case containsFold(contentType, "mpeg"), containsFold(contentType, "mp3"), contentType == "":
		return container.NewMp3Parser(), nil
	default:
		return nil, streamerrors.New(fmt.Errorf("no parser for content-type %q", contentType)).
			Component("engine").
			Category(streamerrors.CategoryUnsupportedFormat).
			Build()
	}
}

func selectConverter(source streamcore.SourceFormat) (streamcore.Converter, error) {
	switch source.CodecID {
	case "pcm":
		return container.NewWavConverter(), nil
	default:
		return container.NewMp3Converter(), nil
	}
}

func selectSink(cfg *conf.Config) (streamcore.OutputSink, error) {
	switch cfg.OutputBackend {
	case conf.OutputBackendPortAudio:
		return sink.NewPortAudioSink(), nil
	default:
		return sink.NewMalgoSink(""), nil
	}
}

func containsFold(s, substr string) bool {
	return len(s) >= len(substr) && indexFold(s, substr) >= 0
}

func indexFold(s, substr string) int {
	lowerS, lowerSub := toLower(s), toLower(substr)
	for i := 0; i+len(lowerSub) <= len(lowerS); i++ {
		if lowerS[i:i+len(lowerSub)] == lowerSub {
			return i
		}
	}
	return -1
}

func toLower(s string) string {
	out := []byte(s)
	for i, b := range out {
		if b >= 'A' && b <= 'Z' {
			out[i] = b + ('a' - 'A')
		}
	}
	return string(out)
}

// StartMetrics starts the metrics/health HTTP server, if configured.
func (e *Engine) StartMetrics(ctx context.Context) error {
	return e.Metrics.Start(ctx)
}

// Open opens url and blocks the caller's goroutine only long enough to
// kick off playback; after that the input and sink deliver their events
// to the pipeline from their own goroutines. If a
// position was remembered for this url from an earlier session, playback
// resumes from there instead of from the start.
func (e *Engine) Open(ctx context.Context, url string) error {
	if e.mqttClient != nil {
		if err := e.mqttClient.Connect(ctx); err != nil {
			return err
		}
	}

	e.Pipeline.SetURL(url)
	var pos *streamcore.StreamPosition
	if remembered, ok := e.Cache.Lookup(url); ok {
		pos = &streamcore.StreamPosition{Start: remembered.ByteOffset}
	}
	return e.Pipeline.Open(ctx, pos)
}

// Remember records the current playback offset for url so a future Open
// can resume near it; Forget drops it once a stream finishes cleanly.
func (e *Engine) Remember(url string, offset uint64) {
	e.Cache.Remember(url, offset)
}

func (e *Engine) Forget(url string) {
	e.Cache.Forget(url)
}

// Close tears down the pipeline and, if one was built, the MQTT client.
func (e *Engine) Close() error {
	err := e.Pipeline.Close(true)
	if e.mqttClient != nil {
		e.mqttClient.Disconnect()
	}
	return err
}

// engineDelegate is the concrete streamcore.Delegate the CLI wires into
// every AudioPipeline it builds: it keeps the metrics server's health
// status current, fans events out to MQTT and any host-supplied
// Delegate, and notifies external services on a hard Failed transition.
// Playback-position memory (cachestore.Store) is exposed on Engine
// itself rather than here, since remembering a position is a policy
// decision (when to checkpoint) that belongs to the caller driving
// playback, not to event plumbing.
type engineDelegate struct {
	health   *metricsserver.HealthStatus
	metrics  *metricsserver.Metrics
	notifier *notify.Notifier
	fanout   *mqttpublish.Fanout

	// lastReceived is the running total last seen by OnReceivedSize, so
	// only the increase since then is added to the BytesReceived counter.
	lastReceived uint64
}

func (d *engineDelegate) OnStateChanged(state streamcore.State) {
	d.metrics.StateTransitions.WithLabelValues(state.String()).Inc()
	d.health.Set(state != streamcore.StateFailed, state.String())
	if state == streamcore.StateFailed {
		go d.notifier.Notify(context.Background(), notify.Event{
			State:   state.String(),
			Message: "playback failed",
		})
	}
	d.fanout.OnStateChanged(state)
}

func (d *engineDelegate) OnError(kind streamcore.ErrorKind, description string) {
	d.metrics.Errors.WithLabelValues(kind.String()).Inc()
	if log := logging.ForService("engine"); log != nil {
		log.Warn("pipeline error", "kind", kind.String(), "description", description)
	}
	d.fanout.OnError(kind, description)
}

func (d *engineDelegate) OnMetaDataAvailable(meta map[string]string) {
	d.fanout.OnMetaDataAvailable(meta)
}

func (d *engineDelegate) OnSamplesAvailable(pcm []byte, desc streamcore.PacketDesc) {
	d.fanout.OnSamplesAvailable(pcm, desc)
}

func (d *engineDelegate) OnBitRateAvailable() {
	d.fanout.OnBitRateAvailable()
}

func (d *engineDelegate) OnReceivedSize(bytes uint64) {
	if bytes > d.lastReceived {
		d.metrics.BytesReceived.Add(float64(bytes - d.lastReceived))
	}
	d.lastReceived = bytes
	d.fanout.OnReceivedSize(bytes)
}

func (d *engineDelegate) OnBufferEmpty() {
	d.metrics.BufferUnderruns.Inc()
	d.fanout.OnBufferEmpty()
}

var _ streamcore.Delegate = (*engineDelegate)(nil)
