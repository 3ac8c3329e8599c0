package eventstream

import "errors"

var (
	// ErrNilExchangeEvent is returned when a publisher is handed a nil event.
	ErrNilExchangeEvent = errors.New("nil exchange event")

	// ErrPublisherClosed is returned when publishing after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)
