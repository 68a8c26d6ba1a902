// Package conf holds the streaming engine's configuration. Unlike the
// teacher project this is not a global singleton: callers build a
// *Config and pass it to streamcore.New, and every subsystem reads from
// that same value for the lifetime of the session.
package conf

import "time"

// Config collects every tunable the streaming engine exposes externally.
// Zero-value fields are filled in by Defaults().
type Config struct {
	// OutputRing
	BufferCount    int // output ring depth, default 8
	BufferSize     int // bytes per output ring buffer
	MaxPacketDescs int // packet descs per ring buffer before forced enqueue

	// PacketCache / back-pressure
	DecodeQueueSize                               int   // min cached packets before the converter pump runs
	MaxPrebufferedBytes                           int64 // cache -> input back-pressure ceiling
	RequiredInitialPrebufferedBytesContinuous     int64
	RequiredInitialPrebufferedBytesNonContinuous  int64 // mirrors the continuous field but for fixed-length sources

	// Bounce detector
	BounceInterval time.Duration
	MaxBounceCount int

	// Watchdogs
	StartupWatchdogPeriod time.Duration
	QueueDrainInterval    time.Duration // W2 tick, default 50ms

	// Destination format
	OutputSampleRate int
	OutputChannels   int

	// Caching input
	CacheEnabled      bool
	CacheDirectory    string
	MaxDiskCacheBytes int64
	MinFreeDiskBytes  int64 // floor enforced before writing cache data

	// HTTP input
	UserAgent                 string
	DefaultContentType        string
	StrictContentTypeChecking bool
	HTTPTimeout               time.Duration

	// Seeking
	SeekingFromCacheEnabled bool

	// Output backend selects which concrete OutputSink implementation
	// plays PCM: malgo (the default, cross-platform) or portaudio.
	OutputBackend OutputBackend

	// Optional ambient integrations; all no-op when left zero-valued.
	MQTT       MQTTConfig
	Notify     NotifyConfig
	MetricsAddr string // e.g. ":9090"; empty disables the metrics server
	SentryDSN  string

	Log LogConfig
}

// OutputBackend selects the concrete OutputSink implementation.
type OutputBackend string

const (
	OutputBackendMalgo     OutputBackend = "malgo"
	OutputBackendPortAudio OutputBackend = "portaudio"
)

// MQTTConfig configures optional event forwarding to an MQTT broker.
type MQTTConfig struct {
	Enabled  bool
	Broker   string // tcp://host:port
	Topic    string
	ClientID string
	Username string
	Password string
}

// NotifyConfig configures optional shoutrrr notifications on Failed.
type NotifyConfig struct {
	Enabled bool
	URLs    []string // shoutrrr service URLs, e.g. "telegram://token@telegram?chats=..."
}

// LogConfig defines rotation behavior for the file-based structured logger.
type LogConfig struct {
	Enabled     bool
	Path        string
	Rotation    RotationType
	MaxSize     int64
	RotationDay time.Weekday
}

type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// Defaults returns a Config with every option set to the values named
// throughout as reasonable defaults for a typical deployment (buffer_count
// default 8, max_packet_descs default 512).
func Defaults() *Config {
	return &Config{
		BufferCount:    8,
		BufferSize:     64 * 1024,
		MaxPacketDescs: 512,

		DecodeQueueSize: 8,
		MaxPrebufferedBytes:                          2 * 1024 * 1024,
		RequiredInitialPrebufferedBytesContinuous:    64 * 1024,
		RequiredInitialPrebufferedBytesNonContinuous: 128 * 1024,

		BounceInterval: 10 * time.Second,
		MaxBounceCount: 3,

		StartupWatchdogPeriod: 30 * time.Second,
		QueueDrainInterval:    50 * time.Millisecond,

		OutputSampleRate: 44100,
		OutputChannels:   2,

		CacheEnabled:      false,
		CacheDirectory:    "cache",
		MaxDiskCacheBytes: 512 * 1024 * 1024,
		MinFreeDiskBytes:  64 * 1024 * 1024,

		UserAgent:                 "streamcore/1.0",
		DefaultContentType:        "audio/mpeg",
		StrictContentTypeChecking: false,
		HTTPTimeout:               30 * time.Second,

		SeekingFromCacheEnabled: true,

		OutputBackend: OutputBackendMalgo,

		Log: LogConfig{
			Enabled:  true,
			Path:     "logs/streamcore.log",
			Rotation: RotationSize,
			MaxSize:  100 * 1024 * 1024,
		},
	}
}
