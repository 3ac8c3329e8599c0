package config

import (
	"log/slog"

	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

// NewClient builds an Ollama client from the client section.
func (c ClientConfig) NewClient(log *slog.Logger) (*ollama.Client, error) {
	timeout, err := c.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	return ollama.NewClient(&ollama.ClientConfig{
		BaseURL: c.BaseURL,
		Timeout: timeout,
		Logger:  log,
	}), nil
}
