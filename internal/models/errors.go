package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks lookups for ids the core has never seen or has
	// already forgotten.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded is returned by the pre-flight quota guard before any
	// provider is contacted.
	ErrQuotaExceeded = errors.New("search quota exceeded")

	// ErrQuoteExpired rejects booking attempts against quotes whose
	// availability window has closed.
	ErrQuoteExpired = errors.New("quote expired")

	// ErrNoProviders rejects searches for item types no registered adapter
	// serves in this deployment.
	ErrNoProviders = errors.New("no providers for item type")
)

// AllProvidersFailedError reports a search in which not a single provider
// produced quotes. It carries every per-provider failure so callers can see
// what went wrong where.
type AllProvidersFailedError struct {
	Errors []ProviderError
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all %d providers failed", len(e.Errors))
}
