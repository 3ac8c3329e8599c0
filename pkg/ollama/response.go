package ollama

import (
	"encoding/json"
	"io"
	"net/http"
)

// Response wraps a transport response whose body decodes into T. It must be
// consumed exactly once, through Single, Stream, Aggregate or Raw. Every decode
// path first classifies the status: a non-200 answer becomes a KindOllama error
// carrying the body text verbatim, ahead of any decode error.
type Response[T Item[T]] struct {
	resp     *http.Response
	consumed bool
}

// NewResponse wraps resp. Ownership of resp.Body passes to the Response.
func NewResponse[T Item[T]](resp *http.Response) *Response[T] {
	return &Response[T]{resp: resp}
}

// StatusCode returns the transport status code.
func (r *Response[T]) StatusCode() int {
	return r.resp.StatusCode
}

// Header returns the transport response headers.
func (r *Response[T]) Header() http.Header {
	return r.resp.Header
}

// Single reads the whole body and decodes it as one object.
func (r *Response[T]) Single() (T, error) {
	var item T

	if err := r.consume(); err != nil {
		return item, err
	}
	defer r.resp.Body.Close()

	if err := r.checkStatus(); err != nil {
		return item, err
	}

	body, err := io.ReadAll(r.resp.Body)
	if err != nil {
		return item, newError(KindDecode, err)
	}
	if err := json.Unmarshal(body, &item); err != nil {
		var zero T
		return zero, newError(KindParse, err)
	}
	return item, nil
}

// Stream returns the body as a lazy sequence of items. It never fails
// synchronously: a status or consumption failure is the only element of the
// returned stream.
func (r *Response[T]) Stream() *Stream[T] {
	if err := r.consume(); err != nil {
		return failedStream[T](err)
	}
	if err := r.checkStatus(); err != nil {
		_ = r.resp.Body.Close()
		return failedStream[T](err)
	}
	return NewStream[T](r.resp.Body)
}

// Aggregate streams the body and folds it into one item. It works the same
// whether or not the server streamed, since a single object is a one-line
// stream.
func (r *Response[T]) Aggregate() (T, error) {
	return Aggregate(r.Stream())
}

// Raw returns the untouched transport response once its status has been
// classified. The caller takes over closing its body. A non-200 answer is
// returned as a KindOllama error with the body already read and closed.
func (r *Response[T]) Raw() (*http.Response, error) {
	if err := r.consume(); err != nil {
		return nil, err
	}
	if err := r.checkStatus(); err != nil {
		_ = r.resp.Body.Close()
		return nil, err
	}
	return r.resp, nil
}

// Close discards an unconsumed response. It is a no-op after consumption.
func (r *Response[T]) Close() error {
	if r.consumed {
		return nil
	}
	r.consumed = true
	return r.resp.Body.Close()
}

func (r *Response[T]) consume() error {
	if r.consumed {
		return &Error{Kind: KindDecode, Detail: "response already consumed"}
	}
	r.consumed = true
	return nil
}

// checkStatus reads a failed body best-effort; an unreadable body yields an
// empty detail.
func (r *Response[T]) checkStatus() error {
	if r.resp.StatusCode == http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(r.resp.Body)
	if err != nil {
		body = nil
	}
	return &Error{
		Kind:   KindOllama,
		Detail: string(body),
		Status: r.resp.StatusCode,
	}
}
