package ollama

import "fmt"

// Options holds the model parameters accepted by every endpoint that runs a
// model. Each field is independently optional and omitted from the wire when
// nil. See the Modelfile documentation for the meaning of each parameter:
// https://github.com/ollama/ollama/blob/main/docs/modelfile.md#valid-parameters-and-values
type Options struct {
	// Mirostat enables Mirostat sampling (0 = disabled, 1 = Mirostat, 2 = Mirostat 2.0).
	Mirostat *int `json:"mirostat,omitempty"`

	// MirostatEta is the learning rate of the Mirostat algorithm.
	MirostatEta *float64 `json:"mirostat_eta,omitempty"`

	// MirostatTau balances coherence against diversity of the output.
	MirostatTau *float64 `json:"mirostat_tau,omitempty"`

	// NumCtx is the size of the context window.
	NumCtx *int `json:"num_ctx,omitempty"`

	// RepeatLastN is how far back the model looks to prevent repetition
	// (0 = disabled, -1 = num_ctx).
	RepeatLastN *int `json:"repeat_last_n,omitempty"`

	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Seed          *int     `json:"seed,omitempty"`

	// Stop sequences end generation when encountered.
	Stop []string `json:"stop,omitempty"`

	// TfsZ is tail free sampling; 1.0 disables it.
	TfsZ *float64 `json:"tfs_z,omitempty"`

	// NumPredict caps the number of generated tokens
	// (-1 = infinite, -2 = fill context).
	NumPredict *int `json:"num_predict,omitempty"`

	TopK *int     `json:"top_k,omitempty"`
	TopP *float64 `json:"top_p,omitempty"`
}

// IsZero reports whether no option is set. It lets requests drop the whole
// "options" object with the omitzero tag.
func (o Options) IsZero() bool {
	return o.Mirostat == nil &&
		o.MirostatEta == nil &&
		o.MirostatTau == nil &&
		o.NumCtx == nil &&
		o.RepeatLastN == nil &&
		o.RepeatPenalty == nil &&
		o.Temperature == nil &&
		o.Seed == nil &&
		len(o.Stop) == 0 &&
		o.TfsZ == nil &&
		o.NumPredict == nil &&
		o.TopK == nil &&
		o.TopP == nil
}

// Validate checks the documented ranges of the set options.
func (o Options) Validate() error {
	if o.Mirostat != nil && (*o.Mirostat < 0 || *o.Mirostat > 2) {
		return invalidParameter(fmt.Sprintf("mirostat must be 0, 1 or 2, got %d", *o.Mirostat))
	}
	if o.NumCtx != nil && *o.NumCtx <= 0 {
		return invalidParameter(fmt.Sprintf("num_ctx must be positive, got %d", *o.NumCtx))
	}
	if o.RepeatLastN != nil && *o.RepeatLastN < -1 {
		return invalidParameter(fmt.Sprintf("repeat_last_n must be >= -1, got %d", *o.RepeatLastN))
	}
	if o.Temperature != nil && *o.Temperature < 0 {
		return invalidParameter(fmt.Sprintf("temperature must be >= 0, got %g", *o.Temperature))
	}
	if o.NumPredict != nil && *o.NumPredict < -2 {
		return invalidParameter(fmt.Sprintf("num_predict must be >= -2, got %d", *o.NumPredict))
	}
	if o.TopK != nil && *o.TopK < 0 {
		return invalidParameter(fmt.Sprintf("top_k must be >= 0, got %d", *o.TopK))
	}
	if o.TopP != nil && (*o.TopP < 0 || *o.TopP > 1) {
		return invalidParameter(fmt.Sprintf("top_p must be within [0, 1], got %g", *o.TopP))
	}
	for i, s := range o.Stop {
		if s == "" {
			return invalidParameter(fmt.Sprintf("stop[%d] must not be empty", i))
		}
	}
	return nil
}

// Ptr returns a pointer to v, for filling optional fields inline.
func Ptr[T any](v T) *T {
	return &v
}

// Format is the response format requested from the server.
type Format string

// FormatJSON constrains the model output to valid JSON.
const FormatJSON Format = "json"

func (f Format) validate() error {
	switch f {
	case "", FormatJSON:
		return nil
	default:
		return invalidParameter(fmt.Sprintf("unsupported format %q", string(f)))
	}
}

// streaming reports the mode implied by a request's stream flag: only an
// explicit false disables streaming.
func streaming(flag *bool) bool {
	return flag == nil || *flag
}
