package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/go-farescout/internal/models"
)

func desc(id string, types ...models.ItemType) Descriptor {
	return Descriptor{ID: id, DisplayName: id, ItemTypes: types}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(desc("amadeus", models.ItemFlight)))

	d, ok := r.Get("amadeus")
	assert.True(t, ok)
	assert.Equal(t, "amadeus", d.ID)

	_, ok = r.Get("ghost")
	assert.False(t, ok)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(desc("duffel", models.ItemFlight)))
	err := r.Register(desc("duffel", models.ItemFlight))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterRejectsIncomplete(t *testing.T) {
	r := New()
	assert.Error(t, r.Register(Descriptor{ItemTypes: []models.ItemType{models.ItemFlight}}))
	assert.Error(t, r.Register(Descriptor{ID: "no-types"}))
}

func TestByItemTypeFiltersAndSorts(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(desc("duffel", models.ItemFlight)))
	require.NoError(t, r.Register(desc("amadeus", models.ItemFlight, models.ItemHotel)))
	require.NoError(t, r.Register(desc("rapidstays", models.ItemHotel)))

	flights := r.ByItemType(models.ItemFlight)
	require.Len(t, flights, 2)
	assert.Equal(t, "amadeus", flights[0].ID)
	assert.Equal(t, "duffel", flights[1].ID)

	cars := r.ByItemType(models.ItemCar)
	assert.Empty(t, cars)
}

func TestCapabilities(t *testing.T) {
	d := Descriptor{
		ID:           "velocars",
		ItemTypes:    []models.ItemType{models.ItemCar},
		Capabilities: CapSearch | CapBook | CapCancel,
	}
	assert.True(t, d.Capabilities.Has(CapSearch))
	assert.True(t, d.Capabilities.Has(CapBook))
	assert.True(t, d.Capabilities.Has(CapCancel))
	assert.False(t, d.Capabilities.Has(CapModify))
	assert.False(t, d.Capabilities.Has(CapRealTimeInventory))
}
