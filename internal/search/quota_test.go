package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQuotaExhaustsAndRefills(t *testing.T) {
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	current := base
	q := NewQuota(2, time.Minute)
	q.now = func() time.Time { return current }
	q.last = base

	require.True(t, q.Allow())
	require.True(t, q.Allow())
	require.False(t, q.Allow(), "third call in the same window must be rejected")
	require.Equal(t, 0, q.Remaining())

	current = base.Add(59 * time.Second)
	require.False(t, q.Allow(), "window has not rolled yet")

	current = base.Add(time.Minute)
	require.Equal(t, 2, q.Remaining())
	require.True(t, q.Allow())
	require.Equal(t, 1, q.Remaining())
}

func TestQuotaRefillIsWholeBucket(t *testing.T) {
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	current := base
	q := NewQuota(3, time.Minute)
	q.now = func() time.Time { return current }
	q.last = base

	for i := 0; i < 3; i++ {
		require.True(t, q.Allow())
	}

	// Two full intervals elapse; the bucket refills to capacity, it does
	// not accumulate.
	current = base.Add(5 * time.Minute)
	for i := 0; i < 3; i++ {
		require.True(t, q.Allow())
	}
	require.False(t, q.Allow())
}
