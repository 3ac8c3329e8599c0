package config

import "github.com/ZBcheng/pure-ollama/pkg/ollama"

const (
	defaultModel        = "llama3.2"
	defaultKeepAlive    = "5m"
	defaultProxyListen  = ":11435"
	defaultKafkaTopic   = "pollama.exchanges"
	defaultClientTarget = ollama.DefaultBaseURL
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			BaseURL:   defaultClientTarget,
			Model:     defaultModel,
			KeepAlive: defaultKeepAlive,
		},
		Proxy: ProxyConfig{
			Listen:   defaultProxyListen,
			Upstream: defaultClientTarget,
		},
		EventStream: EventStreamConfig{
			Topic: defaultKafkaTopic,
		},
	}
}
