// Package registry tracks which provider adapters exist and what each one
// can do. The orchestrator consults it to select adapters for a search and
// the status board reports against it.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/you/go-farescout/internal/models"
)

// Capability flags advertise optional adapter behavior.
type Capability uint8

const (
	// CapSearch means the provider answers live offer searches.
	CapSearch Capability = 1 << iota
	// CapBook means offers can be taken through to a confirmed booking.
	CapBook
	// CapModify means confirmed bookings accept date or traveler changes.
	CapModify
	// CapCancel means confirmed bookings can be cancelled upstream.
	CapCancel
	// CapRealTimeInventory means remaining-unit counts are live, not estimates.
	CapRealTimeInventory
)

func (c Capability) Has(flag Capability) bool { return c&flag != 0 }

// Descriptor is the static identity card an adapter registers under.
type Descriptor struct {
	ID            string
	DisplayName   string
	ItemTypes     []models.ItemType
	Capabilities  Capability
	CommissionPct float64 // platform commission baked into displayed totals
	Currencies    []string
	Regions       []string
}

func (d Descriptor) Supports(it models.ItemType) bool {
	for _, t := range d.ItemTypes {
		if t == it {
			return true
		}
	}
	return false
}

// Registry is a concurrency-safe descriptor index keyed by provider ID.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Descriptor
}

func New() *Registry {
	return &Registry{byID: make(map[string]Descriptor)}
}

func (r *Registry) Register(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("registry: descriptor needs an id")
	}
	if len(d.ItemTypes) == 0 {
		return fmt.Errorf("registry: provider %q supports no item types", d.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[d.ID]; dup {
		return fmt.Errorf("registry: provider %q already registered", d.ID)
	}
	r.byID[d.ID] = d
	return nil
}

func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// ByItemType returns the descriptors able to serve the given item type,
// ordered by ID so fan-out order is stable.
func (r *Registry) ByItemType(it models.ItemType) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Descriptor
	for _, d := range r.byID {
		if d.Supports(it) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every registered descriptor ordered by ID.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
