package ollama

import "time"

// Item is implemented by every value decoded from one line of a response
// body. The aggregator is written once against this interface and
// instantiated per endpoint.
type Item[T any] interface {
	// Terminal reports whether this is the final chunk of a stream.
	Terminal() bool

	// Merge folds next into the receiver. The result takes its fields from
	// next, except that the incremental payload is the concatenation of both
	// and created_at is kept from the receiver.
	Merge(next T) T
}

// Metrics is the telemetry the server attaches to the terminal chunk. The
// values are totals for the whole exchange; durations are nanoseconds.
type Metrics struct {
	TotalDuration      uint64 `json:"total_duration,omitempty"`
	LoadDuration       uint64 `json:"load_duration,omitempty"`
	PromptEvalCount    uint64 `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration uint64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          uint64 `json:"eval_count,omitempty"`
	EvalDuration       uint64 `json:"eval_duration,omitempty"`
}

// Total returns TotalDuration as a time.Duration.
func (m Metrics) Total() time.Duration {
	return time.Duration(m.TotalDuration)
}

// TokensPerSecond returns the generation rate, or 0 when unknown.
func (m Metrics) TokensPerSecond() float64 {
	if m.EvalDuration == 0 {
		return 0
	}
	return float64(m.EvalCount) / time.Duration(m.EvalDuration).Seconds()
}
