// Package adapters holds one client per upstream travel supplier. Each
// adapter speaks its provider's wire format and returns normalized quotes;
// nothing upstream-specific leaks past this package.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/registry"
)

type Adapter interface {
	Descriptor() registry.Descriptor
	Search(ctx context.Context, req models.SearchRequest) ([]models.Quote, error)
}

// ErrKind buckets adapter failures for partial-result reporting and metrics.
type ErrKind string

const (
	ErrTimeout  ErrKind = "timeout"
	ErrNetwork  ErrKind = "network"
	ErrAuth     ErrKind = "auth"
	ErrParse    ErrKind = "parse"
	ErrUpstream ErrKind = "upstream"
)

type AdapterError struct {
	Provider string
	Kind     ErrKind
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

func fail(provider string, kind ErrKind, format string, args ...any) *AdapterError {
	return &AdapterError{Provider: provider, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Classify wraps an arbitrary adapter failure into an AdapterError with the
// most specific kind that can be inferred from the error chain.
func Classify(provider string, err error) *AdapterError {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae
	}
	kind := ErrUpstream
	var nerr net.Error
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	var uerr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case errors.As(err, &nerr) && nerr.Timeout():
		kind = ErrTimeout
	case errors.As(err, &syn), errors.As(err, &typ):
		kind = ErrParse
	case errors.As(err, &uerr):
		kind = ErrNetwork
	}
	return &AdapterError{Provider: provider, Kind: kind, Err: err}
}
