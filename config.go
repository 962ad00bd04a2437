package resocket

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variables read by LoadConfig
const EnvPrefix = "RESOCKET_"

// Config holds the options of a Socket. It is copied by New and never
// changes afterwards.
type Config struct {
	// EndPoint is the ws:// or wss:// URL to connect to. http:// and https:// are rewritten. Required.
	EndPoint string `koanf:"endpoint"`

	// SubProtocols are offered during the handshake, in order of preference.
	SubProtocols []string `koanf:"sub_protocols"`

	// ReconnectInterval is the fixed wait between attempts. Negative disables retries;
	// zero selects DefaultReconnectInterval. Use ReconnectImmediately for no wait.
	ReconnectInterval time.Duration `koanf:"reconnect_interval"`

	// ConnectTimeout bounds each attempt. Zero selects DefaultConnectTimeout.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	// Debug enables trace logging of every transition and of handler faults.
	Debug bool `koanf:"debug"`
}

// DefaultConfig returns a Config for endPoint with every other option at its default.
func DefaultConfig(endPoint string) Config {
	return Config{
		EndPoint:          endPoint,
		SubProtocols:      []string{},
		ReconnectInterval: DefaultReconnectInterval,
		ConnectTimeout:    DefaultConnectTimeout,
	}
}

// RetriesEnabled reports whether failed attempts are retried.
func (c Config) RetriesEnabled() bool {
	return c.ReconnectInterval >= 0
}

// withDefaults fills unset options.
func (c Config) withDefaults() Config {
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.SubProtocols == nil {
		c.SubProtocols = []string{}
	} else {
		c.SubProtocols = append(c.SubProtocols[:0:0], c.SubProtocols...)
	}
	return c
}

// Validate checks the configuration. The returned error is a *Error of kind KindConfiguration.
func (c Config) Validate() error {
	if _, err := c.endPointURL(); err != nil {
		return newError(KindConfiguration, 0, err)
	}
	if c.ConnectTimeout < 0 {
		return newError(KindConfiguration, 0, fmt.Errorf("connect_timeout must be positive, got: %v", c.ConnectTimeout))
	}
	for i, p := range c.SubProtocols {
		if strings.TrimSpace(p) == "" {
			return newError(KindConfiguration, 0, fmt.Errorf("sub_protocols[%d] is empty", i))
		}
	}
	return nil
}

func (c Config) endPointURL() (*url.URL, error) {
	if strings.TrimSpace(c.EndPoint) == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(c.EndPoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u, nil
}

// ParseSubProtocols splits a comma separated protocol list, dropping blanks.
func ParseSubProtocols(s string) []string {
	protocols := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			protocols = append(protocols, p)
		}
	}
	return protocols
}

// LoadConfig reads a Config from an optional TOML file and then from
// RESOCKET_* environment variables, which take precedence. Durations may be
// given as Go duration strings ("1.5s") or as integer milliseconds.
func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig("")

	k := koanf.New(".")

	// Load config file if path is provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           &cfg,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				millisecondsHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i, p := range cfg.SubProtocols {
		cfg.SubProtocols[i] = strings.TrimSpace(p)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// millisecondsHookFunc decodes numbers and unit-less numeric strings into a
// time.Duration of that many milliseconds, and other strings with time.ParseDuration.
func millisecondsHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case int64:
			return time.Duration(v) * time.Millisecond, nil
		case float64:
			return time.Duration(v * float64(time.Millisecond)), nil
		case string:
			v = strings.TrimSpace(v)
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				return time.Duration(ms) * time.Millisecond, nil
			}
			return time.ParseDuration(v)
		}
		return data, nil
	}
}
