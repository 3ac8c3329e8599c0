package ollama

import "strings"

// StatusSuccess is the status of the last create-model chunk.
const StatusSuccess = "success"

// CreateModelRequest is the body of POST /api/create.
type CreateModelRequest struct {
	// Name of the model to create.
	Name string `json:"name"`

	// Modelfile holds the contents of the Modelfile.
	Modelfile string `json:"modelfile,omitempty"`

	// Stream set to false requests a single response object.
	Stream *bool `json:"stream,omitempty"`

	// Path to a Modelfile on the server host.
	Path string `json:"path,omitempty"`
}

// Streaming reports whether the server will answer with NDJSON.
func (r *CreateModelRequest) Streaming() bool {
	return streaming(r.Stream)
}

// Validate reports the first constraint the request violates.
func (r *CreateModelRequest) Validate() error {
	if r.Name == "" {
		return invalidParameter("name is required")
	}
	if r.Modelfile == "" && r.Path == "" {
		return invalidParameter("one of modelfile or path is required")
	}
	return nil
}

// CreateModelResponse is one progress line of a create-model response.
type CreateModelResponse struct {
	Status string `json:"status"`
}

// Terminal reports whether the last status line is "success", so it holds
// for an aggregated response too.
func (c CreateModelResponse) Terminal() bool {
	return c.LastStatus() == StatusSuccess
}

// LastStatus returns the most recent status line.
func (c CreateModelResponse) LastStatus() string {
	if i := strings.LastIndexByte(c.Status, '\n'); i >= 0 {
		return c.Status[i+1:]
	}
	return c.Status
}

// Merge joins the status lines in arrival order.
func (c CreateModelResponse) Merge(next CreateModelResponse) CreateModelResponse {
	next.Status = c.Status + "\n" + next.Status
	return next
}
