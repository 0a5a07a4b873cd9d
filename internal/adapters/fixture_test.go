package adapters

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/models"
)

func fixtureConfig() *config.Config {
	return &config.Config{QuoteTTL: 30 * time.Minute}
}

func hotelRequest(t *testing.T) models.SearchRequest {
	t.Helper()
	req := models.SearchRequest{
		ItemType: models.ItemHotel,
		Criteria: models.SearchCriteria{
			Destination: "LIS",
			StartDate:   "2026-10-01",
			EndDate:     "2026-10-05",
			Occupancy:   1,
		},
		Travelers: models.Travelers{Adults: 2},
		Currency:  "EUR",
	}
	require.NoError(t, req.Validate())
	return req
}

func TestFixtureDeterministicPerCriteria(t *testing.T) {
	f := NewFixture("atlas", "Atlas Travel", fixtureConfig())
	req := hotelRequest(t)

	a, err := f.Search(context.Background(), req)
	require.NoError(t, err)
	b, err := f.Search(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].Price.Amount, b[i].Price.Amount)
		assert.Equal(t, a[i].Availability.Remaining, b[i].Availability.Remaining)
	}
}

func TestFixtureDiffersAcrossProviders(t *testing.T) {
	req := hotelRequest(t)
	a, err := NewFixture("atlas", "Atlas", fixtureConfig()).Search(context.Background(), req)
	require.NoError(t, err)
	b, err := NewFixture("borealis", "Borealis", fixtureConfig()).Search(context.Background(), req)
	require.NoError(t, err)

	require.NotEmpty(t, a)
	require.NotEmpty(t, b)
	assert.NotEqual(t, a[0].Price.Amount, b[0].Price.Amount)
}

func TestFixtureQuotesAreValid(t *testing.T) {
	f := NewFixture("atlas", "Atlas Travel", fixtureConfig())
	req := hotelRequest(t)

	quotes, err := f.Search(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, quotes)

	now := time.Now()
	for _, q := range quotes {
		require.NoError(t, q.Validate(now))
		assert.Equal(t, "atlas", q.ProviderID)
		assert.Equal(t, models.ItemHotel, q.ItemType)
		assert.Equal(t, "EUR", q.Price.Currency)
		assert.InDelta(t, q.Price.Amount,
			q.Price.Breakdown.Base+q.Price.Breakdown.Taxes+q.Price.Breakdown.Fees+q.Price.Breakdown.Commission,
			0.011)
		native := strings.TrimPrefix(q.ID, "atlas:")
		assert.Equal(t, "https://go.farescout.example/book/atlas/"+native, q.DeepLink)
	}
}

func TestFixtureFailureHook(t *testing.T) {
	boom := errors.New("upstream 503")
	f := NewFixture("atlas", "Atlas", fixtureConfig()).WithFailure(boom)

	_, err := f.Search(context.Background(), hotelRequest(t))
	require.Error(t, err)
	var ae *AdapterError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "atlas", ae.Provider)
	assert.Equal(t, int32(1), f.Calls())
}

func TestFixtureDelayHonorsContext(t *testing.T) {
	f := NewFixture("atlas", "Atlas", fixtureConfig()).WithDelay(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Search(ctx, hotelRequest(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
