package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ZBcheng/pure-ollama/pkg/eventstream"
	"github.com/ZBcheng/pure-ollama/pkg/logger"
	"github.com/ZBcheng/pure-ollama/pkg/storage"
	"github.com/ZBcheng/pure-ollama/pkg/storage/inmemory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ExchangeRecordedEvent
	err    error
}

func (r *recordingPublisher) PublishExchange(_ context.Context, event *eventstream.ExchangeRecordedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// failingDriver rejects every Put.
type failingDriver struct {
	*inmemory.Driver
}

func (failingDriver) Put(context.Context, *storage.Exchange) error {
	return errors.New("disk full")
}

func newJob(model string) Job {
	ex := storage.NewExchange(storage.EndpointChat, []byte(`{"model":"`+model+`"}`))
	ex.Model = model
	ex.Status = 200
	return Job{
		Exchange: ex,
		Meta: eventstream.ExchangeRequestMeta{
			Path:        "/api/chat",
			StartedAt:   time.Now().Add(-time.Second),
			CompletedAt: time.Now(),
			HTTPStatus:  200,
		},
	}
}

var _ = Describe("Worker Pool", func() {
	var (
		wp        *Pool
		driver    *inmemory.Driver
		publisher *recordingPublisher
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		publisher = &recordingPublisher{}

		var err error
		wp, err = NewPool(&Config{
			Driver:    driver,
			Publisher: publisher,
			Source:    eventstream.EventSource{Upstream: "http://localhost:11434"},
			Logger:    logger.New(logger.WithDebug(true), logger.WithWriter(GinkgoWriter)),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		wp.Close()
	})

	It("requires a driver", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(MatchError(ContainSubstring("storage driver")))
	})

	It("persists enqueued exchanges and publishes an event for each", func() {
		jobs := []Job{newJob("a"), newJob("b"), newJob("c")}
		for _, job := range jobs {
			Expect(wp.Enqueue(job)).To(BeTrue())
		}
		wp.Close()

		stored, err := driver.List(ctx, storage.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(HaveLen(3))

		Expect(publisher.events).To(HaveLen(3))
		for _, event := range publisher.events {
			Expect(event.Source.Upstream).To(Equal("http://localhost:11434"))
			Expect(event.RequestMeta.DurationMs).To(BeNumerically(">=", 999))
			_, err := driver.Get(ctx, event.Exchange.ID)
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("keeps the exchange stored when publishing fails", func() {
		publisher.err = errors.New("broker down")
		job := newJob("a")

		Expect(wp.Enqueue(job)).To(BeTrue())
		wp.Close()

		_, err := driver.Get(ctx, job.Exchange.ID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("does not publish exchanges that failed to store", func() {
		failing, err := NewPool(&Config{Driver: failingDriver{inmemory.NewDriver()}, Publisher: publisher})
		Expect(err).NotTo(HaveOccurred())

		Expect(failing.Enqueue(newJob("a"))).To(BeTrue())
		failing.Close()

		Expect(publisher.events).To(BeEmpty())
	})

	It("drops jobs once closed", func() {
		wp.Close()
		Expect(wp.Enqueue(newJob("late"))).To(BeFalse())
		wp.Close()
	})

	It("drops jobs without an exchange", func() {
		Expect(wp.Enqueue(Job{})).To(BeFalse())
	})

	It("drops jobs when the queue is full", func() {
		blocked := &blockingDriver{Driver: inmemory.NewDriver(), release: make(chan struct{}), started: make(chan struct{})}
		small, err := NewPool(&Config{Driver: blocked, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		Expect(small.Enqueue(newJob("first"))).To(BeTrue())
		Eventually(blocked.started).Should(BeClosed())
		Expect(small.Enqueue(newJob("queued"))).To(BeTrue())
		Expect(small.Enqueue(newJob("dropped"))).To(BeFalse())

		close(blocked.release)
		small.Close()

		stored, err := blocked.List(ctx, storage.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(HaveLen(2))
	})
})

// blockingDriver holds the first Put until release is closed.
type blockingDriver struct {
	*inmemory.Driver
	release chan struct{}

	once    sync.Once
	started chan struct{}
}

func (b *blockingDriver) Put(ctx context.Context, ex *storage.Exchange) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.Driver.Put(ctx, ex)
}
