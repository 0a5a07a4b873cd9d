package models

import "time"

// ProviderState grades one provider's recent behavior.
type ProviderState string

const (
	ProviderOK       ProviderState = "ok"
	ProviderDegraded ProviderState = "degraded"
	ProviderFailing  ProviderState = "failing"
)

// ProviderHealth is one provider's live status snapshot.
type ProviderHealth struct {
	Provider            string        `json:"provider"`
	State               ProviderState `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastLatencyMs       int64         `json:"last_latency_ms"`
	LastError           string        `json:"last_error,omitempty"`
	LastSuccess         time.Time     `json:"last_success"`
	LastChecked         time.Time     `json:"last_checked"`
}

// SystemHealth is the operator view served by the health endpoint. Status is
// degraded as soon as any provider is failing.
type SystemHealth struct {
	Status         string           `json:"status"`
	Providers      []ProviderHealth `json:"providers"`
	ActiveSearches int              `json:"active_searches"`
	QuotaRemaining int              `json:"quota_remaining"`
	CachedResults  int              `json:"cached_results"`
	TrackedItems   int              `json:"tracked_items"`
	ActiveAlerts   int              `json:"active_alerts"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
}
