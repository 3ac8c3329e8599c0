package storage

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

// Endpoint names the Ollama operation an exchange went through.
type Endpoint string

const (
	EndpointGenerate Endpoint = "generate"
	EndpointChat     Endpoint = "chat"
	EndpointCreate   Endpoint = "create"
)

// EndpointForPath maps an API path to its Endpoint. The second result is
// false for paths that are not recorded.
func EndpointForPath(path string) (Endpoint, bool) {
	switch path {
	case ollama.GeneratePath:
		return EndpointGenerate, true
	case ollama.ChatPath:
		return EndpointChat, true
	case ollama.CreatePath:
		return EndpointCreate, true
	default:
		return "", false
	}
}

// Exchange is one request and its aggregated response as seen by the proxy.
type Exchange struct {
	ID       string   `json:"id"`
	Endpoint Endpoint `json:"endpoint"`
	Model    string   `json:"model,omitempty"`

	// Status is the upstream HTTP status code.
	Status int `json:"status"`

	// Streamed reports whether the response arrived as an NDJSON stream.
	Streamed bool `json:"streamed"`

	// Request is the request body as sent upstream.
	Request json.RawMessage `json:"request,omitempty"`

	// Response is the aggregated response, re-encoded as a single object.
	// Empty when Error is set.
	Response json.RawMessage `json:"response,omitempty"`

	// Error holds the failure description when the exchange did not yield a
	// response: the raw upstream body for non-200 statuses, or the
	// aggregation error otherwise.
	Error string `json:"error,omitempty"`

	PromptTokens     uint64 `json:"prompt_tokens,omitempty"`
	CompletionTokens uint64 `json:"completion_tokens,omitempty"`
	DurationNs       uint64 `json:"duration_ns,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewExchange returns an Exchange with a fresh ID and creation time.
func NewExchange(endpoint Endpoint, request []byte) *Exchange {
	return &Exchange{
		ID:        uuid.NewString(),
		Endpoint:  endpoint,
		Request:   json.RawMessage(request),
		CreatedAt: time.Now().UTC(),
	}
}

// SetMetrics copies the completion telemetry onto the exchange.
func (e *Exchange) SetMetrics(m ollama.Metrics) {
	e.PromptTokens = m.PromptEvalCount
	e.CompletionTokens = m.EvalCount
	e.DurationNs = m.TotalDuration
}

// Duration returns DurationNs as a time.Duration.
func (e *Exchange) Duration() time.Duration {
	return time.Duration(e.DurationNs)
}

// Validate checks the fields every driver relies on.
func (e *Exchange) Validate() error {
	if e == nil {
		return errors.New("cannot store nil exchange")
	}
	if e.ID == "" {
		return errors.New("exchange id is required")
	}
	if e.Endpoint == "" {
		return errors.New("exchange endpoint is required")
	}
	return nil
}
