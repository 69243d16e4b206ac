// Package config holds the tunable parameters of the hint server and loads
// them from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML files can use strings like "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds tuned parameters for the hint server.
type Config struct {
	ListenAddr string `toml:"listen_addr"`

	// Hint scheduling
	TickRate        Duration `toml:"tick_rate"`        // host frame callback cadence
	DefaultInterval Duration `toml:"default_interval"` // wait between composite passes

	// Built-in elements
	ServerClock bool `toml:"server_clock"`
	Nameplates  bool `toml:"nameplates"`

	// Debug dump of compiled payloads
	DebugDump bool   `toml:"debug_dump"`
	DumpSink  string `toml:"dump_sink"` // "file" or "sqlite"
	DumpDir   string `toml:"dump_dir"`

	// Storage; an empty db_path runs without a database
	DBPath    string   `toml:"db_path"`
	Retention Duration `toml:"retention"` // diagnostics older than this are pruned; 0 keeps everything

	// Channel buffers
	ClientSendBuffer int `toml:"client_send_buffer"`
	CommandBuffer    int `toml:"command_buffer"`

	// Logging
	LogLevel string `toml:"log_level"`
	LogJSON  bool   `toml:"log_json"`
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		TickRate:         Duration{20 * time.Millisecond},
		DefaultInterval:  Duration{500 * time.Millisecond},
		ServerClock:      true,
		Nameplates:       true,
		DumpSink:         "file",
		DumpDir:          "hint-dumps",
		DBPath:           "hints.db",
		Retention:        Duration{24 * time.Hour},
		ClientSendBuffer: 64,
		CommandBuffer:    256,
		LogLevel:         "info",
	}
}

// StressTestConfig returns aggressive settings for load testing with the agitator.
func StressTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.TickRate = Duration{10 * time.Millisecond}
	cfg.DefaultInterval = Duration{100 * time.Millisecond}
	cfg.ClientSendBuffer = 128
	cfg.CommandBuffer = 1024 * runtime.NumCPU()
	return cfg
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	cfg := DefaultConfig()
	cfg.TickRate = Duration{50 * time.Millisecond}
	cfg.DefaultInterval = Duration{time.Second}
	cfg.ClientSendBuffer = 8
	cfg.CommandBuffer = 32
	cfg.LogLevel = "debug"
	return cfg
}

// Preset returns the named preset.
func Preset(name string) (*Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "stress":
		return StressTestConfig(), nil
	case "low":
		return LowResourceConfig(), nil
	}
	return nil, fmt.Errorf("unknown config preset %q", name)
}

// Load reads a TOML file on top of the given base config. A missing path
// returns base unchanged.
func Load(path string, base *Config) (*Config, error) {
	if base == nil {
		base = DefaultConfig()
	}
	if path == "" {
		return base, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return base, nil
	}

	cfg := *base
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the config can drive the scheduler.
func (c *Config) Validate() error {
	if c.TickRate.Duration <= 0 {
		return errors.New("tick_rate must be positive")
	}
	if c.DefaultInterval.Duration <= 0 {
		return errors.New("default_interval must be positive")
	}
	if c.DefaultInterval.Duration < c.TickRate.Duration {
		return fmt.Errorf("default_interval %s is shorter than tick_rate %s", c.DefaultInterval, c.TickRate)
	}
	switch c.DumpSink {
	case "file", "sqlite":
	default:
		return fmt.Errorf("dump_sink must be \"file\" or \"sqlite\", got %q", c.DumpSink)
	}
	if c.DebugDump && c.DumpSink == "sqlite" && c.DBPath == "" {
		return errors.New("dump_sink \"sqlite\" needs db_path")
	}
	if c.Retention.Duration < 0 {
		return errors.New("retention must not be negative")
	}
	if c.ClientSendBuffer <= 0 || c.CommandBuffer <= 0 {
		return errors.New("channel buffers must be positive")
	}
	return nil
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreaseTickRate   bool
	IncreaseSendBuffer bool
	TrimElements       bool
	Notes              []string
}

// Analyze examines current metrics and returns tuning recommendations.
func Analyze(cfg *Config, metrics map[string]interface{}) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	// Check frame latency against the cadence
	if tick, ok := metrics["tick"].(map[string]interface{}); ok {
		if maxLat, ok := tick["max_latency_ms"].(float64); ok && maxLat > float64(cfg.TickRate.Milliseconds()) {
			rec.IncreaseTickRate = true
			rec.Notes = append(rec.Notes, "Frame latency exceeds tick_rate - raise tick_rate")
		}
	}

	if hints, ok := metrics["hints"].(map[string]interface{}); ok {
		if drops, ok := hints["overflow_drops"].(int64); ok && drops > 0 {
			rec.TrimElements = true
			rec.Notes = append(rec.Notes, "Contributions dropped by the size budget - trim element content")
		}
	}

	// Check WebSocket backpressure
	if ws, ok := metrics["websocket"].(map[string]interface{}); ok {
		if wsErrs, ok := ws["errors"].(int64); ok && wsErrs > 0 {
			rec.IncreaseSendBuffer = true
			rec.Notes = append(rec.Notes, "WebSocket drops detected - increase client_send_buffer")
		}
	}

	return rec
}

// ApplyRecommendations modifies config based on recommendations.
func ApplyRecommendations(config *Config, rec *Recommendations) *Config {
	if rec.IncreaseTickRate {
		config.TickRate.Duration *= 2
		if config.DefaultInterval.Duration < config.TickRate.Duration {
			config.DefaultInterval.Duration = config.TickRate.Duration
		}
	}
	if rec.IncreaseSendBuffer {
		config.ClientSendBuffer *= 2
	}
	return config
}
