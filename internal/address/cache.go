package address

import (
	"sort"

	"github.com/jonathan/applytrack/internal/types"
)

// Cache is the run-scoped address resolution context. It is created
// empty at run start (or seeded from the persisted store), consulted before
// any resolver runs, and persisted explicitly at run end. There is no
// hidden cross-run state.
type Cache struct {
	entries map[string]types.AddressRecord
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]types.AddressRecord)}
}

// Put stores a record keyed by normalized employer name. An existing entry
// is replaced only by an equal-or-higher provenance record; a lower tier
// never clobbers a better answer. Reports whether the record was stored.
func (c *Cache) Put(rec types.AddressRecord) bool {
	existing, ok := c.entries[rec.Employer]
	if ok && !rec.Provenance.Outranks(existing.Provenance) {
		return false
	}
	c.entries[rec.Employer] = rec
	return true
}

// Get returns the cached record for a normalized employer name.
func (c *Cache) Get(employer string) (types.AddressRecord, bool) {
	rec, ok := c.entries[employer]
	return rec, ok
}

// Records returns all cached records sorted by employer for deterministic
// persistence and export.
func (c *Cache) Records() []types.AddressRecord {
	out := make([]types.AddressRecord, 0, len(c.entries))
	for _, rec := range c.entries {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Employer < out[j].Employer })
	return out
}
