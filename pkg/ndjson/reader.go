// Package ndjson frames newline-delimited JSON bodies into one record per line.
package ndjson

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const (
	readBufferSize = 64 * 1024

	// DefaultMaxLineSize bounds a single record. Terminal generate chunks carry
	// the full token context, so this is well above a typical line.
	DefaultMaxLineSize = 4 * 1024 * 1024
)

// ErrLineTooLong is returned for a line longer than the configured maximum.
// The line is discarded and the Reader stays usable.
var ErrLineTooLong = errors.New("ndjson: line exceeds maximum size")

// Reader pulls newline-delimited records from a source io.Reader.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  Reader.Next()   │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │   []byte line    │
// └──────────────────┘
//
// Reads go through a 64 KiB buffer, so bytes past the current line may already
// have been pulled from the source; they are not framed until the next call.
//
// Blank lines are skipped and a final line without a trailing newline is still
// delivered. A read failure is reported exactly once; every later call returns
// io.EOF, so a broken source cannot make a consumer spin.
type Reader struct {
	src     *bufio.Reader
	maxLine int
	line    []byte
	done    bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxLineSize overrides DefaultMaxLineSize.
func WithMaxLineSize(n int) Option {
	return func(r *Reader) {
		r.maxLine = n
	}
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{
		src:     bufio.NewReaderSize(src, readBufferSize),
		maxLine: DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next returns the next non-blank line with surrounding whitespace trimmed.
// It blocks until a complete line is available. The returned slice is only
// valid until the following call to Next.
//
// An oversized line yields ErrLineTooLong and reading resumes after it. Next
// returns io.EOF once the source is exhausted, or after a read failure has
// been reported.
func (r *Reader) Next() ([]byte, error) {
	for !r.done {
		raw, err := r.readLine()
		switch {
		case errors.Is(err, ErrLineTooLong):
			return nil, err
		case err == io.EOF:
			r.done = true
		case err != nil:
			r.done = true
			return nil, err
		}

		if line := bytes.TrimSpace(raw); len(line) > 0 {
			return line, nil
		}
	}
	return nil, io.EOF
}

// readLine reads through the next '\n'. Past maxLine bytes the rest of the
// line is consumed but not kept.
func (r *Reader) readLine() ([]byte, error) {
	r.line = r.line[:0]
	tooLong := false

	for {
		frag, err := r.src.ReadSlice('\n')
		if !tooLong {
			r.line = append(r.line, frag...)
			if len(bytes.TrimRight(r.line, "\r\n")) > r.maxLine {
				tooLong = true
				r.line = r.line[:0]
			}
		}

		if err == bufio.ErrBufferFull {
			continue
		}
		if tooLong && (err == nil || err == io.EOF) {
			return nil, ErrLineTooLong
		}
		return r.line, err
	}
}
