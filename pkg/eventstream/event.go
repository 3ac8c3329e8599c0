// Package eventstream publishes notifications about recorded exchanges.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/ZBcheng/pure-ollama/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeExchangeRecorded is emitted after an exchange is persisted.
	EventTypeExchangeRecorded = "pollama.exchange.recorded"
)

// ExchangeRecordedEvent is a transport-neutral event payload for a recorded exchange.
type ExchangeRecordedEvent struct {
	SchemaVersion int                 `json:"schema_version"`
	EventType     string              `json:"event_type"`
	EventID       string              `json:"event_id"`
	EmittedAt     time.Time           `json:"emitted_at"`
	Source        EventSource         `json:"source"`
	RequestMeta   ExchangeRequestMeta `json:"request_meta"`
	Exchange      storage.Exchange    `json:"exchange"`
}

// EventSource identifies where the exchange was recorded.
type EventSource struct {
	Upstream string `json:"upstream"`
	Listen   string `json:"listen,omitempty"`
}

// ExchangeRequestMeta captures request lifecycle metadata for the event.
type ExchangeRequestMeta struct {
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`
	HTTPStatus  int       `json:"http_status"`
}

// NewExchangeRecordedEvent builds a v1 event for ex.
func NewExchangeRecordedEvent(source EventSource, meta ExchangeRequestMeta, ex *storage.Exchange) *ExchangeRecordedEvent {
	if meta.DurationMs == 0 && !meta.CompletedAt.IsZero() {
		meta.DurationMs = meta.CompletedAt.Sub(meta.StartedAt).Milliseconds()
	}

	return &ExchangeRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeExchangeRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
		Exchange:      *ex,
	}
}
