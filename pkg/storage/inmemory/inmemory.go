// Package inmemory provides a map-backed storage driver. Its contents are
// lost when the process exits.
package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ZBcheng/pure-ollama/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of exchanges
	mu sync.RWMutex

	// exchanges is the in memory map of exchanges keyed by ID
	exchanges map[string]*storage.Exchange
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		exchanges: make(map[string]*storage.Exchange),
	}
}

// Put stores a copy of ex.
func (s *Driver) Put(_ context.Context, ex *storage.Exchange) error {
	if err := ex.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exchanges[ex.ID]; ok {
		return fmt.Errorf("exchange %s already exists", ex.ID)
	}

	stored := *ex
	s.exchanges[ex.ID] = &stored
	return nil
}

// Get retrieves an exchange by its ID.
func (s *Driver) Get(_ context.Context, id string) (*storage.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ex, ok := s.exchanges[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	out := *ex
	return &out, nil
}

// List returns matching exchanges newest first.
func (s *Driver) List(_ context.Context, opts storage.ListOptions) ([]*storage.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Exchange, 0, len(s.exchanges))
	for _, ex := range s.exchanges {
		if !opts.Match(ex) {
			continue
		}
		out := *ex
		result = append(result, &out)
	}

	slices.SortFunc(result, func(a, b *storage.Exchange) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(b.ID, a.ID)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// Close is a no-op for the in-memory storer.
func (s *Driver) Close() error {
	return nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
