package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so the API layer can map it to a status code and
// callers can decide whether the failure is retryable.
type Kind string

const (
	UnsupportedFormat     Kind = "unsupported_format"
	ExtractionError       Kind = "extraction_error"
	EmptyDocument         Kind = "empty_document"
	InvalidConfig         Kind = "invalid_config"
	EmbeddingServiceError Kind = "embedding_service_error"
	GenerationError       Kind = "generation_error"
	InvalidMessageIndex   Kind = "invalid_message_index"
	StoreUnavailable      Kind = "store_unavailable"
	NotFound              Kind = "not_found"
)

// Error carries a kind and a human-readable message alongside the wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the human-readable message of err, falling back to
// err.Error() for errors without a kind.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
