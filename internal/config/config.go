// Package config loads switchd's daemon configuration, layering a YAML
// file and SWITCHD_-prefixed environment variables over built-in defaults
// via koanf/v2, the same three-provider shape dantte-lp-gobfd's
// internal/config uses for its daemon.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds switchd's complete runtime configuration, generalizing the
// teacher's bare socketio.Config (heartbeat/reconnect/transport knobs for a
// Socket.IO server) into the broker daemon's listener, trace, and metrics
// knobs.
type Config struct {
	Listen  ListenConfig  `koanf:"listen"`
	Log     LogConfig     `koanf:"log"`
	Trace   TraceConfig   `koanf:"trace"`
	Metrics MetricsConfig `koanf:"metrics"`
	Assets  AssetsConfig  `koanf:"assets"`
}

// ListenConfig holds the HTTP listener address and daemonization knobs
// mirroring §6's broker daemon surface (-port, -ip, -daemon, -pidfile).
type ListenConfig struct {
	IP      string `koanf:"ip"`
	Port    int    `koanf:"port"`
	Daemon  bool   `koanf:"daemon"`
	PIDFile string `koanf:"pidfile"`
}

// Addr returns the "ip:port" listen address.
func (l ListenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.IP, l.Port)
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `koanf:"level"`
}

// TraceConfig controls the trace ring's capacity.
type TraceConfig struct {
	Capacity int `koanf:"capacity"`
}

// MetricsConfig controls the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// AssetsConfig controls the static-asset root backing the Get verb.
type AssetsConfig struct {
	Root string `koanf:"root"`
}

// DefaultConfig returns the built-in defaults, equivalent to the teacher's
// socketio.DefaultConfig package variable.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			IP:   "127.0.0.1",
			Port: 8080,
		},
		Log: LogConfig{Level: "info"},
		Trace: TraceConfig{
			Capacity: 1024,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
			Path: "/metrics",
		},
		Assets: AssetsConfig{Root: "www"},
	}
}

// envPrefix namespaces environment overrides, e.g. SWITCHD_LISTEN_PORT.
const envPrefix = "SWITCHD_"

// Load layers an optional YAML file and SWITCHD_ environment overrides on
// top of DefaultConfig. path may be empty, in which case only the
// environment overlay runs.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structProvider(DefaultConfig()), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("config: load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// envKeyMapper transforms SWITCHD_LISTEN_PORT -> listen.port.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// structProvider adapts a *Config into a koanf.Provider so DefaultConfig
// can be loaded as the base layer the same way koanf's confmap.Provider
// would, without adding another dependency for a single map conversion.
func structProvider(cfg *Config) koanf.Provider {
	return mapProvider{data: map[string]interface{}{
		"listen.ip":      cfg.Listen.IP,
		"listen.port":    cfg.Listen.Port,
		"listen.daemon":  cfg.Listen.Daemon,
		"listen.pidfile": cfg.Listen.PIDFile,
		"log.level":      cfg.Log.Level,
		"trace.capacity": cfg.Trace.Capacity,
		"metrics.addr":   cfg.Metrics.Addr,
		"metrics.path":   cfg.Metrics.Path,
		"assets.root":    cfg.Assets.Root,
	}}
}

type mapProvider struct{ data map[string]interface{} }

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("config: ReadBytes unsupported")
}

func (m mapProvider) Read() (map[string]interface{}, error) {
	return m.data, nil
}
