// Package debug implements the debugger session: the execution interceptor,
// step controller and embedder API tying the registry, dispatcher and
// command queue together.
package debug

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the session configuration.
type Config struct {
	Debug            bool
	MaxNestedBreaks  int // bound on re-entrant break recursion
	MaxMirrorDepth   int // depth limit when mirroring values into responses
	CommandQueueSize int
	BreakOnCaught    bool
	BreakOnUncaught  bool
	ListenAddr       string // remote transport address, "" disables
}

// NewConfig creates a configuration with defaults from environment
// variables, then applies options.
func NewConfig(options ...ConfigOption) *Config {
	cfg := &Config{
		Debug:            getEnvOrDefault("QSDBG_DEBUG", "false") == "true",
		MaxNestedBreaks:  getEnvIntOrDefault("QSDBG_MAX_NESTED_BREAKS", 4),
		MaxMirrorDepth:   getEnvIntOrDefault("QSDBG_MAX_MIRROR_DEPTH", 10),
		CommandQueueSize: getEnvIntOrDefault("QSDBG_QUEUE_SIZE", 8),
		ListenAddr:       getEnvOrDefault("QSDBG_LISTEN_ADDR", ""),
	}

	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithDebug enables debug logging.
func WithDebug(debug bool) ConfigOption {
	return func(c *Config) { c.Debug = debug }
}

// WithMaxNestedBreaks bounds re-entrant break recursion.
func WithMaxNestedBreaks(n int) ConfigOption {
	return func(c *Config) {
		if n > 0 {
			c.MaxNestedBreaks = n
		}
	}
}

// WithCommandQueueSize sets the command queue's initial capacity.
func WithCommandQueueSize(n int) ConfigOption {
	return func(c *Config) {
		if n > 0 {
			c.CommandQueueSize = n
		}
	}
}

// WithBreakOnException arms the initial exception break policy.
func WithBreakOnException(caught, uncaught bool) ConfigOption {
	return func(c *Config) {
		c.BreakOnCaught = caught
		c.BreakOnUncaught = uncaught
	}
}

// WithListenAddr sets the remote transport listen address.
func WithListenAddr(addr string) ConfigOption {
	return func(c *Config) { c.ListenAddr = addr }
}

type fileConfig struct {
	Debug            *bool   `yaml:"debug"`
	MaxNestedBreaks  *int    `yaml:"max_nested_breaks"`
	MaxMirrorDepth   *int    `yaml:"max_mirror_depth"`
	CommandQueueSize *int    `yaml:"command_queue_size"`
	BreakOnCaught    *bool   `yaml:"break_on_caught"`
	BreakOnUncaught  *bool   `yaml:"break_on_uncaught"`
	ListenAddr       *string `yaml:"listen_addr"`
}

// WithConfigFile loads settings from a YAML file. Missing files are ignored
// so a config file can be optional; unparsable files are reported.
func WithConfigFile(path string) ConfigOption {
	return func(c *Config) {
		data, err := os.ReadFile(path)
		if err != nil {
			return
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			fmt.Fprintf(os.Stderr, "[QuarkScript Debug] ignoring config %s: %v\n", path, err)
			return
		}
		if fc.Debug != nil {
			c.Debug = *fc.Debug
		}
		if fc.MaxNestedBreaks != nil {
			c.MaxNestedBreaks = *fc.MaxNestedBreaks
		}
		if fc.MaxMirrorDepth != nil {
			c.MaxMirrorDepth = *fc.MaxMirrorDepth
		}
		if fc.CommandQueueSize != nil {
			c.CommandQueueSize = *fc.CommandQueueSize
		}
		if fc.BreakOnCaught != nil {
			c.BreakOnCaught = *fc.BreakOnCaught
		}
		if fc.BreakOnUncaught != nil {
			c.BreakOnUncaught = *fc.BreakOnUncaught
		}
		if fc.ListenAddr != nil {
			c.ListenAddr = *fc.ListenAddr
		}
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
