package search

import (
	"sort"
	"sync"
	"time"

	"github.com/you/go-farescout/internal/models"
)

// failingAfter is the consecutive-failure count at which a provider is graded
// failing rather than degraded.
const failingAfter = 3

// StatusBoard tracks per-provider outcomes observed during searches. It feeds
// the health endpoint; dispatch decisions never consult it.
type StatusBoard struct {
	mu    sync.RWMutex
	now   func() time.Time
	state map[string]*models.ProviderHealth
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{now: time.Now, state: make(map[string]*models.ProviderHealth)}
}

// Track seeds an entry so a provider shows up before its first search.
func (b *StatusBoard) Track(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.state[provider]; !ok {
		b.state[provider] = &models.ProviderHealth{Provider: provider, State: models.ProviderOK}
	}
}

// RecordSuccess resets the provider's failure streak.
func (b *StatusBoard) RecordSuccess(provider string, latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.entry(provider)
	h.State = models.ProviderOK
	h.ConsecutiveFailures = 0
	h.LastLatencyMs = latency.Milliseconds()
	h.LastError = ""
	h.LastSuccess = b.now()
	h.LastChecked = h.LastSuccess
}

// RecordFailure advances the failure streak and regrades the provider.
func (b *StatusBoard) RecordFailure(provider string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.entry(provider)
	h.ConsecutiveFailures++
	if h.ConsecutiveFailures >= failingAfter {
		h.State = models.ProviderFailing
	} else {
		h.State = models.ProviderDegraded
	}
	if err != nil {
		h.LastError = err.Error()
	}
	h.LastChecked = b.now()
}

func (b *StatusBoard) entry(provider string) *models.ProviderHealth {
	h, ok := b.state[provider]
	if !ok {
		h = &models.ProviderHealth{Provider: provider}
		b.state[provider] = h
	}
	return h
}

// Snapshot returns the per-provider view sorted by provider id.
func (b *StatusBoard) Snapshot() []models.ProviderHealth {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.ProviderHealth, 0, len(b.state))
	for _, h := range b.state {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Degraded reports whether any provider is currently failing.
func (b *StatusBoard) Degraded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.state {
		if h.State == models.ProviderFailing {
			return true
		}
	}
	return false
}
