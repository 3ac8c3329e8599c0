package ollama

import (
	"errors"
	"strconv"
)

// ErrorKind categorizes client errors for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota

	// KindRequest: the transport failed before a status line was received.
	KindRequest

	// KindOllama: the server answered with a non-success status.
	KindOllama

	// KindDecode: the response body could not be read.
	KindDecode

	// KindParse: a single-object body was read but did not parse.
	KindParse

	// KindInvalidResponse: a streamed line did not parse or was too long, or the
	// stream was empty.
	KindInvalidResponse

	// KindStream: a chunk of a streaming body could not be read.
	KindStream

	// KindInvalidParameter: a request value violates a documented constraint.
	KindInvalidParameter
)

var kindNames = map[ErrorKind]string{
	KindUnknown:          "unknown error",
	KindRequest:          "request error",
	KindOllama:           "ollama error",
	KindDecode:           "decode error",
	KindParse:            "parse error",
	KindInvalidResponse:  "invalid response",
	KindStream:           "stream error",
	KindInvalidParameter: "invalid parameter",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "error kind " + strconv.Itoa(int(k))
}

// Error is the single error type returned by this package. Values are never
// mutated after construction.
type Error struct {
	Kind ErrorKind

	// Detail is the human-readable detail. For KindOllama it is the raw
	// response body, verbatim.
	Detail string

	// Status is the HTTP status code, set only for KindOllama.
	Status int

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := "ollama: " + e.Kind.String()
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of detail text.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors for easy checking with errors.Is.
var (
	ErrRequest          = &Error{Kind: KindRequest}
	ErrOllama           = &Error{Kind: KindOllama}
	ErrDecode           = &Error{Kind: KindDecode}
	ErrParse            = &Error{Kind: KindParse}
	ErrInvalidResponse  = &Error{Kind: KindInvalidResponse}
	ErrStream           = &Error{Kind: KindStream}
	ErrInvalidParameter = &Error{Kind: KindInvalidParameter}
)

func newError(kind ErrorKind, cause error) *Error {
	e := &Error{Kind: kind, Err: cause}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

func invalidParameter(detail string) *Error {
	return &Error{Kind: KindInvalidParameter, Detail: detail}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
