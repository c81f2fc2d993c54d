// Package store provides the committed-ID set backing idempotent writes.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// DefaultExpectedIDs sizes the bloom filter for a typical wantlist or playlist
	DefaultExpectedIDs = 10000
	// DefaultFalsePositiveRate keeps map lookups rare for unseen IDs
	DefaultFalsePositiveRate = 0.001
)

// DedupStore is a thread-safe set of target IDs already committed in this run or seeded from
// the remote. The bloom filter answers most negative lookups; the map is authoritative.
// Entries are never evicted.
type DedupStore struct {
	ids               map[string]struct{}
	bloom             *bloom.BloomFilter
	mutex             sync.RWMutex
	expectedIDs       uint
	falsePositiveRate float64
}

// NewDedupStore creates a store sized for expectedIDs entries. The filter is rebuilt at twice
// the size whenever the store outgrows it.
func NewDedupStore(expectedIDs int, falsePositiveRate float64) *DedupStore {
	if expectedIDs <= 0 {
		expectedIDs = DefaultExpectedIDs
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = DefaultFalsePositiveRate
	}

	ds := &DedupStore{
		expectedIDs:       uint(expectedIDs),
		falsePositiveRate: falsePositiveRate,
	}
	ds.clear()
	return ds
}

// Has checks if an ID has been committed.
func (ds *DedupStore) Has(id string) bool {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.bloom.TestString(id) {
		return false
	}

	_, exists := ds.ids[id]
	return exists
}

// Add records an ID as committed. Empty IDs are ignored.
func (ds *DedupStore) Add(id string) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.add(id)
}

// Load clears the store and seeds it with the provided IDs.
func (ds *DedupStore) Load(ids []string) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.clear()
	for _, id := range ids {
		ds.add(id)
	}
}

// Size returns the number of IDs currently stored.
func (ds *DedupStore) Size() int {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()
	return len(ds.ids)
}

// Clear removes all IDs from the store.
func (ds *DedupStore) Clear() {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	ds.clear()
}

func (ds *DedupStore) add(id string) {
	if id == "" {
		return
	}
	if _, exists := ds.ids[id]; exists {
		return
	}

	ds.ids[id] = struct{}{}
	ds.bloom.AddString(id)

	if uint(len(ds.ids)) > ds.expectedIDs {
		ds.grow()
	}
}

func (ds *DedupStore) clear() {
	ds.ids = make(map[string]struct{})
	ds.bloom = bloom.NewWithEstimates(ds.expectedIDs, ds.falsePositiveRate)
}

// grow doubles the filter capacity and re-adds every known ID.
func (ds *DedupStore) grow() {
	ds.expectedIDs *= 2
	ds.bloom = bloom.NewWithEstimates(ds.expectedIDs, ds.falsePositiveRate)
	for id := range ds.ids {
		ds.bloom.AddString(id)
	}
}
