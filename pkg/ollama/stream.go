package ollama

import (
	"encoding/json"
	"errors"
	"io"
	"iter"

	"github.com/ZBcheng/pure-ollama/pkg/ndjson"
)

// Stream is a lazy, single-pass sequence of items decoded from an NDJSON
// body, one item per line. Nothing is read until the caller pulls.
//
// A malformed or oversized line yields a KindInvalidResponse element in the
// position where it occurred and the sequence continues. A failed read yields
// a KindStream element and ends the sequence. The body is closed when the
// sequence is exhausted, when an All loop is left, or on Close.
//
// A Stream is not safe for concurrent use.
type Stream[T any] struct {
	lines *ndjson.Reader
	body  io.Closer

	// pending is a failure detected before decoding (status classification),
	// yielded as the only element.
	pending error
	closed  bool
}

// NewStream returns a Stream decoding src. If src is an io.Closer it is
// closed when the stream ends.
func NewStream[T any](src io.Reader) *Stream[T] {
	s := &Stream[T]{lines: ndjson.NewReader(src)}
	if c, ok := src.(io.Closer); ok {
		s.body = c
	}
	return s
}

// failedStream returns a Stream whose only element is err.
func failedStream[T any](err error) *Stream[T] {
	return &Stream[T]{pending: err}
}

// Next returns the next element. It blocks until a line is available and
// returns io.EOF once the sequence is exhausted.
func (s *Stream[T]) Next() (T, error) {
	var item T

	if s.pending != nil {
		err := s.pending
		s.pending = nil
		_ = s.Close()
		return item, err
	}
	if s.closed {
		return item, io.EOF
	}

	line, err := s.lines.Next()
	if err == io.EOF {
		_ = s.Close()
		return item, io.EOF
	}
	if errors.Is(err, ndjson.ErrLineTooLong) {
		return item, newError(KindInvalidResponse, err)
	}
	if err != nil {
		return item, newError(KindStream, err)
	}

	if err := json.Unmarshal(line, &item); err != nil {
		var zero T
		return zero, newError(KindInvalidResponse, err)
	}
	return item, nil
}

// All returns an iterator over the remaining elements for use with
// range-over-func. Breaking out of the loop closes the stream.
//
//	for item, err := range stream.All() {
//		if err != nil {
//			// one bad element; keep going or break
//			continue
//		}
//		fmt.Print(item.Response)
//	}
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for {
			item, err := s.Next()
			if err == io.EOF {
				return
			}
			if !yield(item, err) {
				return
			}
		}
	}
}

// Close releases the underlying body. It is safe to call more than once.
func (s *Stream[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}
