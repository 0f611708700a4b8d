// Package llm exposes the text-generation capability used by the pipeline.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Request is a single completion call.
type Request struct {
	Purpose     Purpose
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// Kind classifies provider failures.
type Kind string

const (
	KindTransport   Kind = "transport"
	KindRateLimited Kind = "rate_limited"
	KindServer      Kind = "server"
	KindAuth        Kind = "auth"
	KindConfig      Kind = "config"
	KindEmpty       Kind = "empty"
)

// Error is returned by every Generator implementation in this package.
type Error struct {
	Kind   Kind
	Status int
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("llm %s", e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether trying the same request again may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindRateLimited, KindServer, KindEmpty:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable provider error. Errors that
// did not come from a provider are treated as retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return true
}

// classifyStatus maps an HTTP status onto a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 401 || status == 403:
		return KindAuth
	case status == 408 || status >= 500:
		return KindServer
	default:
		return KindConfig
	}
}
