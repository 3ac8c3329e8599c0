package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

// Config represents the persistent pollama configuration stored as
// config.toml in the .pollama/ directory.
type Config struct {
	Version     int               `toml:"version"`
	Client      ClientConfig      `toml:"client"`
	Options     OptionsConfig     `toml:"options"`
	Proxy       ProxyConfig       `toml:"proxy"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// ClientConfig holds settings for commands that talk to the Ollama server.
type ClientConfig struct {
	BaseURL   string `toml:"base_url,omitempty"`
	Model     string `toml:"model,omitempty"`
	Timeout   string `toml:"timeout,omitempty"`
	KeepAlive string `toml:"keep_alive,omitempty"`
}

// TimeoutDuration parses Timeout. An empty value means no limit.
func (c ClientConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid client.timeout: %w", err)
	}
	return d, nil
}

// OptionsConfig holds model options applied to every generate and chat
// request unless overridden by flags.
type OptionsConfig struct {
	Temperature *float64 `toml:"temperature,omitempty"`
	NumCtx      *int     `toml:"num_ctx,omitempty"`
	Seed        *int     `toml:"seed,omitempty"`
}

// ToOptions converts the configured values to request options.
func (o OptionsConfig) ToOptions() ollama.Options {
	return ollama.Options{
		Temperature: o.Temperature,
		NumCtx:      o.NumCtx,
		Seed:        o.Seed,
	}
}

// ProxyConfig holds recording proxy settings.
type ProxyConfig struct {
	Listen   string `toml:"listen,omitempty"`
	Upstream string `toml:"upstream,omitempty"`
}

// StorageConfig selects where recorded exchanges are kept. PostgresDSN wins
// over SQLitePath; with neither set, exchanges are kept in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig holds Kafka publishing settings. Publishing is disabled
// when Brokers is empty.
type EventStreamConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits the comma-separated Brokers value.
func (e EventStreamConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.base_url": {
		get: func(c *Config) string { return c.Client.BaseURL },
		set: func(c *Config, v string) error { c.Client.BaseURL = v; return nil },
	},
	"client.model": {
		get: func(c *Config) string { return c.Client.Model },
		set: func(c *Config, v string) error { c.Client.Model = v; return nil },
	},
	"client.timeout": {
		get: func(c *Config) string { return c.Client.Timeout },
		set: func(c *Config, v string) error {
			if v != "" {
				if _, err := time.ParseDuration(v); err != nil {
					return fmt.Errorf("invalid value for client.timeout: %w", err)
				}
			}
			c.Client.Timeout = v
			return nil
		},
	},
	"client.keep_alive": {
		get: func(c *Config) string { return c.Client.KeepAlive },
		set: func(c *Config, v string) error { c.Client.KeepAlive = v; return nil },
	},
	"options.temperature": {
		get: func(c *Config) string { return formatFloat(c.Options.Temperature) },
		set: func(c *Config, v string) error {
			f, err := parseFloat(v)
			if err != nil {
				return fmt.Errorf("invalid value for options.temperature: %w", err)
			}
			c.Options.Temperature = f
			return nil
		},
	},
	"options.num_ctx": {
		get: func(c *Config) string { return formatInt(c.Options.NumCtx) },
		set: func(c *Config, v string) error {
			n, err := parseInt(v)
			if err != nil {
				return fmt.Errorf("invalid value for options.num_ctx: %w", err)
			}
			c.Options.NumCtx = n
			return nil
		},
	},
	"options.seed": {
		get: func(c *Config) string { return formatInt(c.Options.Seed) },
		set: func(c *Config, v string) error {
			n, err := parseInt(v)
			if err != nil {
				return fmt.Errorf("invalid value for options.seed: %w", err)
			}
			c.Options.Seed = n
			return nil
		},
	},
	"proxy.listen": {
		get: func(c *Config) string { return c.Proxy.Listen },
		set: func(c *Config, v string) error { c.Proxy.Listen = v; return nil },
	},
	"proxy.upstream": {
		get: func(c *Config) string { return c.Proxy.Upstream },
		set: func(c *Config, v string) error { c.Proxy.Upstream = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"client.base_url",
	"client.model",
	"client.timeout",
	"client.keep_alive",
	"options.temperature",
	"options.num_ctx",
	"options.seed",
	"proxy.listen",
	"proxy.upstream",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"eventstream.brokers",
	"eventstream.topic",
}

// An empty value unsets the option.
func parseFloat(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseInt(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
