package pipeline

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"nfspect/internal/extract"
	"nfspect/internal/flowstore"
	"nfspect/internal/procrun"
	"nfspect/internal/slug"
	"nfspect/internal/spectrum"
)

// ErrMissingParameter reports a request without a required parameter.
var ErrMissingParameter = errors.New("missing required parameter")

// Category is the closed set of failure classes reported to callers.
// Classification happens exactly once, here at the pipeline boundary;
// the packages underneath return structured errors only.
type Category int

const (
	BadInput Category = iota
	NotFoundData
	UnprocessableData
	TimedOut
	PayloadTooLarge
	InternalFailure
)

func (c Category) String() string {
	switch c {
	case BadInput:
		return "bad_input"
	case NotFoundData:
		return "not_found"
	case UnprocessableData:
		return "unprocessable"
	case TimedOut:
		return "timed_out"
	case PayloadTooLarge:
		return "payload_too_large"
	default:
		return "internal_failure"
	}
}

// HTTPStatus maps the category to its response status code.
func (c Category) HTTPStatus() int {
	switch c {
	case BadInput:
		return http.StatusBadRequest
	case NotFoundData:
		return http.StatusNotFound
	case UnprocessableData:
		return http.StatusUnprocessableEntity
	case TimedOut:
		return http.StatusRequestTimeout
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Severity is the log level a failure of this category deserves.
// Client-side categories log at warn; only InternalFailure is an error.
func (c Category) Severity() slog.Level {
	if c == InternalFailure {
		return slog.LevelError
	}
	return slog.LevelWarn
}

// Classify maps a pipeline error to its category. Unrecognized errors
// land in InternalFailure.
func Classify(err error) Category {
	switch {
	case errors.Is(err, slug.ErrInvalidFormat),
		errors.Is(err, slug.ErrInvalidCalendar),
		errors.Is(err, ErrMissingParameter):
		return BadInput
	case errors.Is(err, flowstore.ErrNotFound),
		errors.Is(err, fs.ErrNotExist):
		return NotFoundData
	case errors.Is(err, extract.ErrEmptyResult),
		errors.Is(err, spectrum.ErrEmptyResult):
		return UnprocessableData
	case procrun.IsTimeout(err):
		return TimedOut
	case procrun.IsOutputTooLarge(err):
		return PayloadTooLarge
	default:
		return InternalFailure
	}
}
