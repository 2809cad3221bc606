package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures reported by the core.
type ErrorKind string

// Error kinds surfaced to the transport layer.
const (
	KindValidation             ErrorKind = "validation"
	KindUnresolvableLayer      ErrorKind = "unresolvable_layer"
	KindUnsupportedDatasetType ErrorKind = "unsupported_dataset_type"
	KindStaleCacheRebuild      ErrorKind = "stale_cache_rebuild_failure"
	KindRenderTimeout          ErrorKind = "render_timeout"
)

// Error is a classified core error.
type Error struct {
	Kind    ErrorKind
	Field   string // Offending request parameter, for validation errors.
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationError reports a bad or missing request parameter.
func ValidationError(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnresolvableLayerError reports a layer name with no direct or virtual match.
func UnresolvableLayerError(name string, err error) *Error {
	return &Error{Kind: KindUnresolvableLayer, Field: "layers", Message: fmt.Sprintf("layer %q not found", name), Err: err}
}

// UnsupportedTypeError reports a dataset whose topology cannot be built.
func UnsupportedTypeError(dataset string) *Error {
	return &Error{Kind: KindUnsupportedDatasetType, Message: fmt.Sprintf("dataset %q has an unidentified grid type", dataset)}
}

// RebuildError reports a failed topology rebuild.
func RebuildError(dataset string, err error) *Error {
	return &Error{Kind: KindStaleCacheRebuild, Message: fmt.Sprintf("topology rebuild failed for %q", dataset), Err: err}
}

// TimeoutError reports a render that exceeded its budget.
func TimeoutError(err error) *Error {
	return &Error{Kind: KindRenderTimeout, Message: "render exceeded time budget", Err: err}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
