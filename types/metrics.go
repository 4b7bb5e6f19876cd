package types

// Metrics collects operation counters across the engine. The engine
// is single-threaded, so plain increments are fine. The counters are
// not persisted.
type Metrics struct {
	PagesFetched    uint64 // pages read through the device
	PagesFlushed    uint64 // pages written through the device
	CacheHits       uint64
	CacheMisses     uint64
	CacheOverflows  uint64 // fetches that found no evictable victim
	FreelistHits    uint64 // allocations served from the freelist
	FreelistMisses  uint64 // allocations that extended the file
	FreelistDropped uint64 // releases dropped because the freelist was full
	BlobsAllocated  uint64
	BlobsRead       uint64
	BlobCacheHits   uint64
	BtreeSplits     uint64
	BtreeMerges     uint64
	ExtendedKeys    uint64
}

// CompareFunc is the full key comparator: negative if lhs sorts
// before rhs, zero if equal, positive otherwise. The order must be
// total.
type CompareFunc func(lhs, rhs []byte) int

// PrefixCompareFunc compares using only fixed key prefixes.
// lhsSize/rhsSize are the real key lengths. When the prefix is not
// enough to decide, it returns ErrPrefixRequestFullkey and the full
// comparator is consulted.
type PrefixCompareFunc func(lhsPrefix []byte, lhsSize int, rhsPrefix []byte, rhsSize int) (int, error)
