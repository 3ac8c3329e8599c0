package historycmder

import (
	"encoding/json"

	"github.com/ZBcheng/pure-ollama/pkg/ollama"
	"github.com/ZBcheng/pure-ollama/pkg/storage"
)

// Preview returns the text that best summarizes what was asked: the prompt,
// the last user message, or the name of the model being created.
func Preview(ex *storage.Exchange) string {
	switch ex.Endpoint {
	case storage.EndpointGenerate:
		var req ollama.GenerateRequest
		if json.Unmarshal(ex.Request, &req) == nil {
			return req.Prompt
		}
	case storage.EndpointChat:
		var req ollama.ChatRequest
		if json.Unmarshal(ex.Request, &req) == nil {
			for i := len(req.Messages) - 1; i >= 0; i-- {
				if req.Messages[i].Role == ollama.RoleUser {
					return req.Messages[i].Content
				}
			}
		}
	case storage.EndpointCreate:
		var req ollama.CreateModelRequest
		if json.Unmarshal(ex.Request, &req) == nil {
			return req.Name
		}
	}
	return ""
}

// Answer returns the text of the aggregated response, if it has one.
func Answer(ex *storage.Exchange) string {
	if len(ex.Response) == 0 {
		return ""
	}

	switch ex.Endpoint {
	case storage.EndpointGenerate:
		var resp ollama.GenerateResponse
		if json.Unmarshal(ex.Response, &resp) == nil {
			return resp.Response
		}
	case storage.EndpointChat:
		var resp ollama.ChatResponse
		if json.Unmarshal(ex.Response, &resp) == nil {
			return resp.Content()
		}
	case storage.EndpointCreate:
		var resp ollama.CreateModelResponse
		if json.Unmarshal(ex.Response, &resp) == nil {
			return resp.Status
		}
	}
	return ""
}
