// Package ollama is a client for the Ollama inference server. Every endpoint
// returns a Response envelope that can be consumed as a single object, as a
// lazy stream of partial items, or as one item aggregated from the stream.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ZBcheng/pure-ollama/pkg/logger"
	"github.com/ZBcheng/pure-ollama/pkg/utils"
)

const (
	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	GeneratePath = "/api/generate"
	ChatPath     = "/api/chat"
	CreatePath   = "/api/create"
)

// ClientConfig holds configuration for the client.
type ClientConfig struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// HTTPClient is the transport. Defaults to an http.Client with Timeout.
	HTTPClient *http.Client

	// Timeout bounds a whole exchange, including reading a streamed body.
	// Zero means no limit; cancel through the request context instead.
	// Ignored when HTTPClient is set.
	Timeout time.Duration

	// Logger receives debug logs for each exchange. Defaults to logger.Nop().
	Logger *slog.Logger
}

// Client sends typed requests to an Ollama server. It holds no per-request
// state and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. A nil config uses the defaults.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     log,
	}
}

// BaseURL returns the server URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate sends a completion request for a prompt.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*Response[GenerateResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, GeneratePath, req.Model, req)
	if err != nil {
		return nil, err
	}
	return NewResponse[GenerateResponse](resp), nil
}

// Chat sends the next message of a conversation.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*Response[ChatResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, ChatPath, req.Model, req)
	if err != nil {
		return nil, err
	}
	return NewResponse[ChatResponse](resp), nil
}

// CreateModel creates a model from a Modelfile.
func (c *Client) CreateModel(ctx context.Context, req *CreateModelRequest) (*Response[CreateModelResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, CreatePath, req.Name, req)
	if err != nil {
		return nil, err
	}
	return NewResponse[CreateModelResponse](resp), nil
}

// send posts body as JSON. Only a failure to complete the exchange is an
// error here; the status is classified by the Response.
func (c *Client) send(ctx context.Context, path, model string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newError(KindRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson, application/json")
	req.Header.Set("User-Agent", "pure-ollama/"+utils.Version)

	c.logger.Debug("sending request", "path", path, "model", model, "bytes", len(payload))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "path", path, "error", err)
		return nil, newError(KindRequest, err)
	}

	c.logger.Debug("response received",
		"path", path,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"latency", time.Since(start),
	)
	return resp, nil
}
