// Package storagetest holds the behaviors every storage.Driver must share,
// written as ginkgo specs so each driver package can run them.
package storagetest

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ZBcheng/pure-ollama/pkg/ollama"
	"github.com/ZBcheng/pure-ollama/pkg/storage"
)

// NewExchange builds a recorded exchange for tests. Successive calls with
// increasing offsets produce increasing creation times.
func NewExchange(endpoint storage.Endpoint, model string, offset time.Duration) *storage.Exchange {
	ex := storage.NewExchange(endpoint, []byte(`{"model":"`+model+`","prompt":"hi"}`))
	ex.Model = model
	ex.Status = 200
	ex.Streamed = true
	ex.Response = []byte(`{"model":"` + model + `","response":"hello","done":true}`)
	ex.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset)
	ex.SetMetrics(ollama.Metrics{PromptEvalCount: 4, EvalCount: 9, TotalDuration: 1_500_000})
	return ex
}

// DriverBehaviors registers the shared specs. newDriver is called before
// each spec; the returned driver is closed after it.
func DriverBehaviors(newDriver func() storage.Driver) {
	Describe("storage.Driver", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
				driver = nil
			}
		})

		Describe("Put and Get", func() {
			It("stores and retrieves an exchange", func() {
				ex := NewExchange(storage.EndpointGenerate, "llama3.2", 0)
				Expect(driver.Put(ctx, ex)).To(Succeed())

				got, err := driver.Get(ctx, ex.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal(ex.ID))
				Expect(got.Endpoint).To(Equal(storage.EndpointGenerate))
				Expect(got.Model).To(Equal("llama3.2"))
				Expect(got.Status).To(Equal(200))
			Expect(got.Streamed).To(BeTrue())
				Expect(string(got.Request)).To(Equal(string(ex.Request)))
				Expect(string(got.Response)).To(Equal(string(ex.Response)))
				Expect(got.PromptTokens).To(Equal(uint64(4)))
				Expect(got.CompletionTokens).To(Equal(uint64(9)))
				Expect(got.Duration()).To(Equal(1500 * time.Microsecond))
				Expect(got.CreatedAt.Equal(ex.CreatedAt)).To(BeTrue())
			})

			It("keeps the upstream error of a failed exchange", func() {
				ex := NewExchange(storage.EndpointChat, "missing", 0)
				ex.Status = 404
				ex.Response = nil
				ex.Error = `{"error":"model 'missing' not found"}`
				Expect(driver.Put(ctx, ex)).To(Succeed())

				got, err := driver.Get(ctx, ex.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Status).To(Equal(404))
				Expect(got.Response).To(BeEmpty())
				Expect(got.Error).To(Equal(ex.Error))
			})

			It("returns NotFoundError for a non-existent ID", func() {
				_, err := driver.Get(ctx, "nonexistent")

				var notFound storage.NotFoundError
				Expect(errors.As(err, &notFound)).To(BeTrue())
				Expect(notFound.ID).To(Equal("nonexistent"))
				Expect(errors.Is(err, storage.ErrNotFound)).To(BeTrue())
			})

			It("rejects duplicate IDs", func() {
				ex := NewExchange(storage.EndpointGenerate, "m", 0)
				Expect(driver.Put(ctx, ex)).To(Succeed())
				Expect(driver.Put(ctx, ex)).NotTo(Succeed())
			})

			It("rejects nil and incomplete exchanges", func() {
				Expect(driver.Put(ctx, nil)).To(MatchError(ContainSubstring("nil exchange")))
				Expect(driver.Put(ctx, &storage.Exchange{Endpoint: storage.EndpointChat})).To(MatchError(ContainSubstring("id is required")))
			})
		})

		Describe("List", func() {
			BeforeEach(func() {
				Expect(driver.Put(ctx, NewExchange(storage.EndpointGenerate, "a", 1*time.Second))).To(Succeed())
				Expect(driver.Put(ctx, NewExchange(storage.EndpointChat, "b", 2*time.Second))).To(Succeed())
				Expect(driver.Put(ctx, NewExchange(storage.EndpointChat, "a", 3*time.Second))).To(Succeed())
			})

			models := func(exs []*storage.Exchange) []string {
				var out []string
				for _, ex := range exs {
					out = append(out, string(ex.Endpoint)+"/"+ex.Model)
				}
				return out
			}

			It("returns exchanges newest first", func() {
				exs, err := driver.List(ctx, storage.ListOptions{})
				Expect(err).NotTo(HaveOccurred())
				Expect(models(exs)).To(Equal([]string{"chat/a", "chat/b", "generate/a"}))
			})

			It("filters by model and endpoint", func() {
				exs, err := driver.List(ctx, storage.ListOptions{Model: "a"})
				Expect(err).NotTo(HaveOccurred())
				Expect(models(exs)).To(Equal([]string{"chat/a", "generate/a"}))

				exs, err = driver.List(ctx, storage.ListOptions{Model: "a", Endpoint: storage.EndpointGenerate})
				Expect(err).NotTo(HaveOccurred())
				Expect(models(exs)).To(Equal([]string{"generate/a"}))
			})

			It("honors the limit", func() {
				exs, err := driver.List(ctx, storage.ListOptions{Limit: 2})
				Expect(err).NotTo(HaveOccurred())
				Expect(models(exs)).To(Equal([]string{"chat/a", "chat/b"}))
			})

			It("returns nothing for an unknown model", func() {
				exs, err := driver.List(ctx, storage.ListOptions{Model: "zzz"})
				Expect(err).NotTo(HaveOccurred())
				Expect(exs).To(BeEmpty())
			})
		})
	})
}
