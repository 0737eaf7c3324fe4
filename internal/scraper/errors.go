package scraper

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRenderTimeout means the page content never settled within the wait budget
	ErrRenderTimeout = errors.New("render timeout")
	// ErrRenderFailure means navigation or the browser connection failed
	ErrRenderFailure = errors.New("render failure")
	// ErrExtractionEmpty means the gallery yielded no image URLs
	ErrExtractionEmpty = errors.New("no images extracted")
	// ErrMissingField means a listing stub lacks a field the filter needs
	ErrMissingField = errors.New("missing required field")

	errContentMissing = errors.New("content markers not found")
)

// FailureKind classifies a render attempt failure
type FailureKind string

const (
	KindTimeout FailureKind = "timeout"
	KindFailure FailureKind = "failure"
)

// RenderError is returned by renderers and by the retry loop
type RenderError struct {
	Kind    FailureKind
	URL     string
	Attempt int
	Err     error
}

func (e *RenderError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("%s rendering %s (attempt %d): %v", e.Kind, e.URL, e.Attempt, e.Err)
	}
	return fmt.Sprintf("%s rendering %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause
func (e *RenderError) Unwrap() []error {
	sentinel := ErrRenderFailure
	if e.Kind == KindTimeout {
		sentinel = ErrRenderTimeout
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// NewTimeout builds a timeout-kind render error
func NewTimeout(url string, err error) *RenderError {
	return &RenderError{Kind: KindTimeout, URL: url, Err: err}
}

// NewFailure builds a failure-kind render error
func NewFailure(url string, err error) *RenderError {
	return &RenderError{Kind: KindFailure, URL: url, Err: err}
}

// asRenderError normalises any renderer error into a *RenderError
func asRenderError(err error, url string, attempt int) *RenderError {
	var re *RenderError
	if errors.As(err, &re) {
		out := *re
		if out.URL == "" {
			out.URL = url
		}
		out.Attempt = attempt
		return &out
	}
	kind := KindFailure
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &RenderError{Kind: kind, URL: url, Attempt: attempt, Err: err}
}

// IsHardFailure reports whether err is a navigation/transport failure
// rather than a content timeout
func IsHardFailure(err error) bool {
	return errors.Is(err, ErrRenderFailure)
}
