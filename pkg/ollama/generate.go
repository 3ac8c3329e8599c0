package ollama

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`

	// Images is a list of base64-encoded images for multimodal models.
	Images []string `json:"images,omitempty"`

	Format  Format  `json:"format,omitempty"`
	Options Options `json:"options,omitzero"`

	// System overrides the system message defined in the Modelfile.
	System string `json:"system,omitempty"`

	// Template overrides the prompt template defined in the Modelfile.
	Template string `json:"template,omitempty"`

	// Context is the value returned by a previous generate call, used to keep
	// a short conversational memory.
	Context []int `json:"context,omitempty"`

	// Stream set to false requests a single response object.
	Stream *bool `json:"stream,omitempty"`

	// Raw disables prompt templating.
	Raw *bool `json:"raw,omitempty"`

	// KeepAlive controls how long the model stays loaded, e.g. "5m".
	KeepAlive string `json:"keep_alive,omitempty"`
}

// Streaming reports whether the server will answer with NDJSON.
func (r *GenerateRequest) Streaming() bool {
	return streaming(r.Stream)
}

// Validate reports the first constraint the request violates.
func (r *GenerateRequest) Validate() error {
	if r.Model == "" {
		return invalidParameter("model is required")
	}
	if err := r.Format.validate(); err != nil {
		return err
	}
	return r.Options.Validate()
}

// GenerateResponse is one chunk of a generate response, or the whole response
// when streaming is disabled.
type GenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Done      bool   `json:"done"`

	// Response holds the incremental text of this chunk.
	Response string `json:"response"`

	DoneReason string `json:"done_reason,omitempty"`

	// Context encodes the conversation so far; send it back in the next
	// request to continue it.
	Context []int `json:"context,omitempty"`

	Metrics
}

func (g GenerateResponse) Terminal() bool {
	return g.Done
}

func (g GenerateResponse) Merge(next GenerateResponse) GenerateResponse {
	next.Response = g.Response + next.Response
	next.CreatedAt = g.CreatedAt
	return next
}
