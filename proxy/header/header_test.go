package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handler", func() {
	var (
		app *fiber.App
		hh  *Handler
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
	})

	AfterEach(func() {
		_ = app.Shutdown()
	})

	Describe("SetUpstreamRequestHeaders", func() {
		upstreamHeaders := func(set map[string]string) http.Header {
			GinkgoHelper()

			var got http.Header
			app.Post("/api/chat", func(c *fiber.Ctx) error {
				req, _ := http.NewRequest(http.MethodPost, "http://upstream/api/chat", nil)
				hh.SetUpstreamRequestHeaders(c, req)
				got = req.Header
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			for k, v := range set {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			return got
		}

		It("forwards end-to-end headers", func() {
			got := upstreamHeaders(map[string]string{
				"Authorization": "Bearer token123",
				"Content-Type":  "application/json",
				"User-Agent":    "pure-ollama/dev",
			})
			Expect(got.Get("Authorization")).To(Equal("Bearer token123"))
			Expect(got.Get("Content-Type")).To(Equal("application/json"))
			Expect(got.Get("User-Agent")).To(Equal("pure-ollama/dev"))
		})

		DescribeTable("strips connection-scoped headers",
			func(name, value string) {
				got := upstreamHeaders(map[string]string{name: value, "Authorization": "Bearer t"})
				Expect(got.Get(name)).To(BeEmpty())
				Expect(got.Get("Authorization")).To(Equal("Bearer t"))
			},
			Entry("Connection", "Connection", "keep-alive"),
			Entry("Host", "Host", "client.example.com"),
			Entry("Accept-Encoding", "Accept-Encoding", "gzip, deflate, br"),
		)
	})

	Describe("SetClientResponseHeaders", func() {
		clientResponse := func(upstream http.Header) *http.Response {
			GinkgoHelper()

			app.Get("/api/tags", func(c *fiber.Ctx) error {
				hh.SetClientResponseHeaders(c, &http.Response{Header: upstream})
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/tags", nil))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			return resp
		}

		It("forwards upstream headers and joins multiple values", func() {
			resp := clientResponse(http.Header{
				"Content-Type": {"application/x-ndjson"},
				"X-Multi":      {"value1", "value2"},
			})
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/x-ndjson"))
			Expect(resp.Header.Get("X-Multi")).To(Equal("value1, value2"))
		})

		DescribeTable("strips headers the proxy recomputes",
			func(name, value string) {
				resp := clientResponse(http.Header{name: {value}, "X-Request-Id": {"abc-123"}})
				Expect(resp.Header.Get(name)).NotTo(Equal(value))
				Expect(resp.Header.Get("X-Request-Id")).To(Equal("abc-123"))
			},
			Entry("Connection", "Connection", "upgrade"),
			Entry("Transfer-Encoding", "Transfer-Encoding", "chunked"),
			Entry("Content-Encoding", "Content-Encoding", "gzip"),
			Entry("Content-Length", "Content-Length", "1234"),
		)
	})
})
