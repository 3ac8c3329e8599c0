// Package nop provides the publisher used when no event backend is
// configured. Events are validated and counted, then dropped.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/ZBcheng/pure-ollama/pkg/eventstream"
)

// Publisher drops every event. It is safe for concurrent use.
type Publisher struct {
	dropped atomic.Uint64
	closed  atomic.Bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishExchange(_ context.Context, event *eventstream.ExchangeRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilExchangeEvent
	}
	if p.closed.Load() {
		return eventstream.ErrPublisherClosed
	}
	p.dropped.Add(1)
	return nil
}

// Dropped returns how many events were accepted and discarded.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	p.closed.Store(true)
	return nil
}
