package proxy

import (
	"time"

	"github.com/ZBcheng/pure-ollama/pkg/eventstream"
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":11435")
	ListenAddr string

	// UpstreamURL is the Ollama server URL (e.g., "http://localhost:11434")
	UpstreamURL string

	// Publisher announces recorded exchanges. If nil, events are not published.
	Publisher eventstream.Publisher

	// NumWorkers and QueueSize size the storage worker pool; zero picks the
	// pool defaults.
	NumWorkers uint
	QueueSize  uint

	// UpstreamTimeout limits one upstream exchange including its streamed
	// body. Zero means no limit.
	UpstreamTimeout time.Duration
}
