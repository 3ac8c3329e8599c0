package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ZBcheng/pure-ollama/pkg/dotdir"
)

// EnvPrefix prefixes every environment override, e.g. POLLAMA_CLIENT_MODEL.
const EnvPrefix = "POLLAMA"

// InitViper creates and returns a configured *viper.Viper.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (POLLAMA_CLIENT_BASE_URL, POLLAMA_PROXY_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from v, so callers see the merged
// flag > env > file > default view as typed fields.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Client: ClientConfig{
			BaseURL:   v.GetString("client.base_url"),
			Model:     v.GetString("client.model"),
			Timeout:   v.GetString("client.timeout"),
			KeepAlive: v.GetString("client.keep_alive"),
		},
		Proxy: ProxyConfig{
			Listen:   v.GetString("proxy.listen"),
			Upstream: v.GetString("proxy.upstream"),
		},
		Storage: StorageConfig{
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		EventStream: EventStreamConfig{
			Brokers: v.GetString("eventstream.brokers"),
			Topic:   v.GetString("eventstream.topic"),
		},
	}

	var err error
	if cfg.Options.Temperature, err = parseFloat(v.GetString("options.temperature")); err != nil {
		return nil, fmt.Errorf("invalid options.temperature: %w", err)
	}
	if cfg.Options.NumCtx, err = parseInt(v.GetString("options.num_ctx")); err != nil {
		return nil, fmt.Errorf("invalid options.num_ctx: %w", err)
	}
	if cfg.Options.Seed, err = parseInt(v.GetString("options.seed")); err != nil {
		return nil, fmt.Errorf("invalid options.seed: %w", err)
	}

	if _, err := cfg.Client.TimeoutDuration(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	for _, key := range orderedKeys {
		v.SetDefault(key, configKeys[key].get(d))
	}
}
