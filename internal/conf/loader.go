package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Load overlays values from an optional YAML file and from environment
// variables (prefix STREAMCORE_) onto a copy of Defaults(). It never
// requires the file to exist: a missing path is treated the same as
// an empty file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("STREAMCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("conf: reading config file %q: %w", path, err)
			}
		}
	}

	bindEnvVars(v)
	applyOverrides(v, cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envBinding is a viper key paired with the environment variable that
// backs it, in a table-driven style that's easy to extend.
type envBinding struct {
	Key    string
	EnvVar string
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"cache.enabled", "STREAMCORE_CACHE_ENABLED"},
		{"cache.directory", "STREAMCORE_CACHE_DIRECTORY"},
		{"cache.max_bytes", "STREAMCORE_CACHE_MAX_BYTES"},
		{"http.user_agent", "STREAMCORE_HTTP_USER_AGENT"},
		{"http.strict_content_type", "STREAMCORE_HTTP_STRICT_CONTENT_TYPE"},
		{"output.backend", "STREAMCORE_OUTPUT_BACKEND"},
		{"output.sample_rate", "STREAMCORE_OUTPUT_SAMPLE_RATE"},
		{"mqtt.broker", "STREAMCORE_MQTT_BROKER"},
		{"mqtt.topic", "STREAMCORE_MQTT_TOPIC"},
		{"metrics.addr", "STREAMCORE_METRICS_ADDR"},
		{"sentry.dsn", "STREAMCORE_SENTRY_DSN"},
	}
}

func bindEnvVars(v *viper.Viper) {
	for _, b := range getEnvBindings() {
		_ = v.BindEnv(b.Key, b.EnvVar)
	}
}

// applyOverrides copies any viper value that was actually set (by file
// or by env) on top of the defaults already in cfg.
func applyOverrides(v *viper.Viper, cfg *Config) {
	if v.IsSet("cache.enabled") {
		cfg.CacheEnabled = v.GetBool("cache.enabled")
	}
	if v.IsSet("cache.directory") {
		cfg.CacheDirectory = v.GetString("cache.directory")
	}
	if v.IsSet("cache.max_bytes") {
		cfg.MaxDiskCacheBytes = v.GetInt64("cache.max_bytes")
	}
	if v.IsSet("http.user_agent") {
		cfg.UserAgent = v.GetString("http.user_agent")
	}
	if v.IsSet("http.strict_content_type") {
		cfg.StrictContentTypeChecking = v.GetBool("http.strict_content_type")
	}
	if v.IsSet("output.backend") {
		cfg.OutputBackend = OutputBackend(v.GetString("output.backend"))
	}
	if v.IsSet("output.sample_rate") {
		cfg.OutputSampleRate = v.GetInt("output.sample_rate")
	}
	if v.IsSet("mqtt.broker") {
		cfg.MQTT.Broker = v.GetString("mqtt.broker")
		cfg.MQTT.Enabled = cfg.MQTT.Broker != ""
	}
	if v.IsSet("mqtt.topic") {
		cfg.MQTT.Topic = v.GetString("mqtt.topic")
	}
	if v.IsSet("metrics.addr") {
		cfg.MetricsAddr = v.GetString("metrics.addr")
	}
	if v.IsSet("sentry.dsn") {
		cfg.SentryDSN = v.GetString("sentry.dsn")
	}
}
