// Package storage persists exchanges recorded by the proxy.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving recorded
// exchanges in a storage backend.
type Driver interface {
	// Put stores an exchange. Storing an ID twice is an error.
	Put(ctx context.Context, ex *Exchange) error

	// Get retrieves an exchange by its ID. A missing ID yields NotFoundError.
	Get(ctx context.Context, id string) (*Exchange, error)

	// List returns exchanges newest first.
	List(ctx context.Context, opts ListOptions) ([]*Exchange, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ListOptions filters List results. Zero values mean no filter.
type ListOptions struct {
	// Model keeps only exchanges for this model.
	Model string

	// Endpoint keeps only exchanges for this endpoint.
	Endpoint Endpoint

	// Limit caps the number of results.
	Limit int
}

// Match reports whether ex passes the Model and Endpoint filters.
func (o ListOptions) Match(ex *Exchange) bool {
	if o.Model != "" && ex.Model != o.Model {
		return false
	}
	if o.Endpoint != "" && ex.Endpoint != o.Endpoint {
		return false
	}
	return true
}
