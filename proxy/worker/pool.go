// Package worker provides an asynchronous worker pool that persists recorded
// exchanges to a storage.Driver and announces them on an eventstream.Publisher.
//
// The pool decouples storage operations from the proxy's HTTP hot path so that the
// client-proxy-upstream interaction is fully transparent.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ZBcheng/pure-ollama/pkg/eventstream"
	"github.com/ZBcheng/pure-ollama/pkg/eventstream/nop"
	"github.com/ZBcheng/pure-ollama/pkg/logger"
	"github.com/ZBcheng/pure-ollama/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 30 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Exchange *storage.Exchange
	Meta     eventstream.ExchangeRequestMeta
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting exchanges.
	Driver storage.Driver

	// Publisher announces persisted exchanges. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// Source is stamped on every published event.
	Source eventstream.EventSource

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds the storage and publish calls of one job (defaults to 30s).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	if job.Exchange == nil {
		p.logger.Error("job not queued, nil exchange")
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed", "exchange_id", job.Exchange.ID)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"exchange_id", job.Exchange.ID,
			"endpoint", job.Exchange.Endpoint,
			"model", job.Exchange.Model,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"exchange_id", job.Exchange.ID,
			"endpoint", job.Exchange.Endpoint,
			"model", job.Exchange.Model,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the proxy HTTP server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob persists the exchange and, once stored, publishes its event.
// A failed publish is logged; the exchange stays stored.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	ex := job.Exchange
	if err := p.config.Driver.Put(ctx, ex); err != nil {
		p.logger.Error("async exchange storage failed",
			"exchange_id", ex.ID,
			"endpoint", ex.Endpoint,
			"error", err,
		)
		return
	}

	p.logger.Info("exchange stored",
		"exchange_id", ex.ID,
		"endpoint", ex.Endpoint,
		"model", ex.Model,
		"status", ex.Status,
	)

	event := eventstream.NewExchangeRecordedEvent(p.config.Source, job.Meta, ex)
	if err := p.config.Publisher.PublishExchange(ctx, event); err != nil {
		p.logger.Warn("failed to publish exchange event",
			"exchange_id", ex.ID,
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	p.logger.Debug("published exchange event",
		"exchange_id", ex.ID,
		"event_id", event.EventID,
	)
}
