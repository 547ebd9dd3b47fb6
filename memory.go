package skale

import "sync"

// MemoryManager tracks one worker's storageMemory counter against a
// configured ceiling (spec §4.2). Each worker owns exactly one
// MemoryManager; it is mutated only by the worker that owns it (spec §5
// "Shared resources").
type MemoryManager struct {
	mu      sync.Mutex
	ceiling int64
	used    int64
}

// NewMemoryManager creates a manager bounded by ceiling bytes.
func NewMemoryManager(ceiling int64) *MemoryManager {
	return &MemoryManager{ceiling: ceiling}
}

// Reserve adds bytes to the used counter and reports whether the ceiling is
// now exceeded. Callers that get true back must evict the partition that
// just grew.
func (m *MemoryManager) Reserve(bytes int64) (overCeiling bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used += bytes
	return m.ceiling > 0 && m.used > m.ceiling
}

// Release subtracts bytes from the used counter, e.g. after a partition is
// evicted and its estimate is removed.
func (m *MemoryManager) Release(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= bytes
	if m.used < 0 {
		m.used = 0
	}
}

// Used returns the current storageMemory reading.
func (m *MemoryManager) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// estimateSize returns a cheap size estimate for a batch of elements, used
// as the "cost of the most recent batch" sample spec §4.2 calls for. It is
// not meant to be exact — only stable and monotonic enough to drive
// eviction decisions.
func estimateSize(batch []Elem) int64 {
	var total int64
	for _, e := range batch {
		total += estimateElemSize(e)
	}
	return total
}

func estimateElemSize(e Elem) int64 {
	switch v := e.(type) {
	case nil:
		return 8
	case string:
		return int64(len(v)) + 16
	case []byte:
		return int64(len(v)) + 16
	case Pair:
		return estimateElemSize(v.Key) + estimateElemSize(v.Value) + 16
	case []Elem:
		var total int64 = 24
		for _, x := range v {
			total += estimateElemSize(x)
		}
		return total
	case int, int32, int64, uint, uint32, uint64, float32, float64, bool:
		return 8
	default:
		// Conservative flat estimate for unrecognized shapes (structs,
		// maps, etc.) — good enough to trip the ceiling on large datasets
		// without reflecting over every element.
		return 64
	}
}
