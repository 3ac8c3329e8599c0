// Package proxy provides a recording proxy for an Ollama server. Requests are
// forwarded verbatim; generate, chat and create exchanges are additionally
// aggregated and persisted.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/ZBcheng/pure-ollama/pkg/eventstream"
	"github.com/ZBcheng/pure-ollama/pkg/logger"
	"github.com/ZBcheng/pure-ollama/pkg/ollama"
	"github.com/ZBcheng/pure-ollama/pkg/storage"
	"github.com/ZBcheng/pure-ollama/proxy/header"
	"github.com/ZBcheng/pure-ollama/proxy/worker"
)

// HealthPath answers liveness probes without touching the upstream.
const HealthPath = "/healthz"

// Proxy is a transparent proxy in front of an Ollama server. It forwards
// requests upstream and enqueues recorded exchanges for async storage via
// its worker pool.
type Proxy struct {
	config        Config
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler

	// pumps counts bodies still being copied to clients.
	pumps sync.WaitGroup
}

// New creates a new Proxy.
// The driver is injected to handle async persistence of exchanges.
func New(config Config, driver storage.Driver, log *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	config.UpstreamURL = strings.TrimRight(config.UpstreamURL, "/")

	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	app.Use(compress.New())

	wp, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Publisher:  config.Publisher,
		Source:     eventstream.EventSource{Upstream: config.UpstreamURL, Listen: config.ListenAddr},
		NumWorkers: config.NumWorkers,
		QueueSize:  config.QueueSize,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	p := &Proxy{
		config:        config,
		workerPool:    wp,
		logger:        log,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient:    &http.Client{Timeout: config.UpstreamTimeout},
	}

	app.Get(HealthPath, adaptor.HTTPHandlerFunc(healthz))
	app.All("/*", p.handleProxy)

	return p, nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// Run starts the proxy server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy, waits for in-flight responses to
// be enqueued and then for the worker pool to drain.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.pumps.Wait()
	p.workerPool.Close()
	return err
}

// Test serves a single request in memory, without a listener.
func (p *Proxy) Test(req *http.Request, timeout ...int) (*http.Response, error) {
	return p.server.Test(req, timeout...)
}

// recording describes an exchange being captured while it streams through.
type recording struct {
	exchange *storage.Exchange
	meta     eventstream.ExchangeRequestMeta
}

// requestProbe pulls the fields the proxy needs out of a request body
// without binding to a specific request type.
type requestProbe struct {
	Model  string `json:"model"`
	Name   string `json:"name"`
	Stream *bool  `json:"stream"`
}

// handleProxy forwards any request upstream. POSTs to generate, chat and
// create are recorded on the way back.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	startTime := time.Now()
	path := c.Path()
	method := c.Method()

	// fasthttp reuses the request buffer once the handler returns.
	body := bytes.Clone(c.Body())

	var rec *recording
	if endpoint, ok := storage.EndpointForPath(path); ok && method == fiber.MethodPost {
		rec = p.newRecording(endpoint, path, body, startTime)
	}

	upstreamURL := p.config.UpstreamURL + path
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		upstreamURL += "?" + string(q)
	}

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	// The body is pumped after the handler returns, when fasthttp has already
	// recycled its RequestCtx, so the upstream call cannot use c.Context().
	httpReq, err := http.NewRequestWithContext(context.Background(), method, upstreamURL, reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		"method", method,
		"url", upstreamURL,
		"recorded", rec != nil,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		if rec != nil {
			rec.exchange.Status = fiber.StatusBadGateway
			rec.exchange.Error = err.Error()
			p.enqueue(rec, startTime)
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream request failed"})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	if rec != nil {
		c.Set(header.ExchangeIDHeader, rec.exchange.ID)
	}
	c.Status(httpResp.StatusCode)

	// io.Pipe gives per-chunk backpressure: pw.Write blocks until fasthttp
	// has read the chunk and flushed it to the client.
	pr, pw := io.Pipe()
	p.pumps.Add(1)
	go p.pump(httpResp, pw, rec, startTime)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (p *Proxy) newRecording(endpoint storage.Endpoint, path string, body []byte, startTime time.Time) *recording {
	ex := storage.NewExchange(endpoint, body)
	ex.Streamed = true

	var probe requestProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		p.logger.Warn("failed to parse request", "path", path, "error", err)
	} else {
		ex.Model = probe.Model
		if ex.Model == "" {
			ex.Model = probe.Name
		}
		if probe.Stream != nil {
			ex.Streamed = *probe.Stream
		}
	}

	return &recording{
		exchange: ex,
		meta: eventstream.ExchangeRequestMeta{
			Path:      path,
			StartedAt: startTime,
			Streaming: ex.Streamed,
		},
	}
}

// pump copies the upstream body to the client. For recorded exchanges the
// body is teed into the response decoder, so the client sees every byte
// exactly as the upstream sent it while the proxy folds the same bytes.
func (p *Proxy) pump(httpResp *http.Response, pw *io.PipeWriter, rec *recording, startTime time.Time) {
	defer p.pumps.Done()
	defer httpResp.Body.Close()

	if rec == nil {
		_, err := io.Copy(pw, httpResp.Body)
		pw.CloseWithError(err)
		return
	}

	upstream := httpResp.Body
	teed := *httpResp
	teed.Body = teeBody{Reader: io.TeeReader(upstream, pw)}

	rec.exchange.Status = httpResp.StatusCode
	rec.meta.HTTPStatus = httpResp.StatusCode

	switch rec.exchange.Endpoint {
	case storage.EndpointGenerate:
		recordAggregate[ollama.GenerateResponse](rec, &teed)
	case storage.EndpointChat:
		recordAggregate[ollama.ChatResponse](rec, &teed)
	case storage.EndpointCreate:
		recordAggregate[ollama.CreateModelResponse](rec, &teed)
	}

	// The decoder stops at its first error; whatever it left unread still
	// belongs to the client.
	_, err := io.Copy(pw, upstream)
	pw.CloseWithError(err)

	p.logger.Debug("exchange complete",
		"exchange_id", rec.exchange.ID,
		"status", rec.exchange.Status,
		"duration", time.Since(startTime),
	)

	p.enqueue(rec, startTime)
}

func (p *Proxy) enqueue(rec *recording, startTime time.Time) {
	rec.meta.CompletedAt = time.Now()
	rec.meta.DurationMs = rec.meta.CompletedAt.Sub(startTime).Milliseconds()

	p.workerPool.Enqueue(worker.Job{Exchange: rec.exchange, Meta: rec.meta})
}

// recordAggregate folds the response into one item and stores it, or the
// failure, on the exchange.
func recordAggregate[T ollama.Item[T]](rec *recording, resp *http.Response) {
	ex := rec.exchange

	item, err := ollama.NewResponse[T](resp).Aggregate()
	if err != nil {
		var oerr *ollama.Error
		if errors.As(err, &oerr) && oerr.Kind == ollama.KindOllama {
			ex.Error = oerr.Detail
		} else {
			ex.Error = err.Error()
		}
		return
	}

	encoded, err := json.Marshal(item)
	if err != nil {
		ex.Error = fmt.Sprintf("encoding aggregated response: %v", err)
		return
	}
	ex.Response = encoded

	switch v := any(item).(type) {
	case ollama.GenerateResponse:
		ex.SetMetrics(v.Metrics)
		if ex.Model == "" {
			ex.Model = v.Model
		}
	case ollama.ChatResponse:
		ex.SetMetrics(v.Metrics)
		if ex.Model == "" {
			ex.Model = v.Model
		}
	}
}

// teeBody lets the decoder close its view of the body without closing the
// upstream connection, which pump still drains.
type teeBody struct {
	io.Reader
}

func (teeBody) Close() error { return nil }
