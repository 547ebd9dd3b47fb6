package skale

import (
	"context"
	"sort"

	"github.com/shankscript/skale-engine/canon"
)

// Partitioner is the common contract every shuffle routes keys through
// (spec §4.1): numPartitions, partitionIndexOf(key) -> [0, numPartitions).
// This generalizes the teacher's PartitionStrategy[T] interface
// (partition.go: Route(value T, partitionCount int) int) from a
// single-process channel router to a cross-worker routing contract whose
// exact hash algorithm every worker must agree on bit-for-bit.
type Partitioner interface {
	NumPartitions() int
	PartitionIndexOf(key Elem) int
}

// HashPartitioner routes by a fixed polynomial rolling hash of the key's
// canonical textual serialization (spec §4.1): multiplier 31, accumulator
// reduced to signed 32-bit, absolute value taken, then modulo n. Every
// worker computes this identically because it depends only on canon.Key
// and basic 32-bit arithmetic, never on Go's randomized string/map
// iteration order.
type HashPartitioner struct {
	n int
}

// NewHashPartitioner creates a hash partitioner with n output partitions.
func NewHashPartitioner(n int) *HashPartitioner {
	if n < 1 {
		n = 1
	}
	return &HashPartitioner{n: n}
}

// NumPartitions implements Partitioner.
func (h *HashPartitioner) NumPartitions() int { return h.n }

// PartitionIndexOf implements Partitioner.
func (h *HashPartitioner) PartitionIndexOf(key Elem) int {
	return int(rollingHash32(canon.Key(key))) % h.n
}

// rollingHash32 is the spec-mandated deterministic 32-bit hash: multiplier
// 31, signed 32-bit accumulator, absolute value taken.
func rollingHash32(s string) uint32 {
	var acc int32
	for i := 0; i < len(s); i++ {
		acc = acc*31 + int32(s[i])
	}
	if acc < 0 {
		acc = -acc
	}
	return uint32(acc)
}

// RangePartitioner routes by comparing a key against n-1 evenly spaced
// upper bounds computed from a sample of the parent dataset (spec §4.1).
// Construction runs an initialization sub-job against the core itself —
// range-partitioner init is a job like any other, so the planner must
// support recursive invocation (spec §4.1 "Range-partitioner init is
// itself a job against the core").
type RangePartitioner struct {
	n      int
	bounds []Elem // n-1 upper bounds, ascending by keyLess
	less   func(a, b Elem) bool
}

// NewRangePartitioner samples ~50% of parent without replacement (via
// Sample(0.5, ...)), collects it to the driver with Collect, sorts by
// keyFn using less, and selects n-1 evenly spaced upper-bound keys,
// deduplicating consecutive equal bounds per the Open Question decision in
// DESIGN.md ("dedup recommended").
func NewRangePartitioner(ctx context.Context, eng *Engine, parent *Dataset, n int, keyFn func(Elem) Elem, less func(a, b Elem) bool) (*RangePartitioner, error) {
	if n < 1 {
		n = 1
	}
	rp := &RangePartitioner{n: n, less: less}
	if n == 1 {
		return rp, nil
	}

	sampled := Sample(parent, 0.5, false, 0)
	sample, err := Collect(ctx, eng, sampled)
	if err != nil {
		return nil, err
	}

	keys := make([]Elem, len(sample))
	for i, e := range sample {
		keys[i] = keyFn(e)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })

	rp.bounds = selectBounds(keys, n, less)
	return rp, nil
}

// selectBounds picks up to n-1 evenly spaced upper bounds from sorted keys,
// dropping a candidate equal to the previous bound so no two bounds are
// equal (DESIGN.md Open Question decision). NumPartitions stays n, so on
// skewed data the partitions between the last kept bound and n-1 receive
// no keys.
func selectBounds(sortedKeys []Elem, n int, less func(a, b Elem) bool) []Elem {
	if len(sortedKeys) == 0 || n <= 1 {
		return nil
	}
	step := float64(len(sortedKeys)) / float64(n)
	bounds := make([]Elem, 0, n-1)
	for i := 1; i < n; i++ {
		idx := int(float64(i) * step)
		if idx >= len(sortedKeys) {
			idx = len(sortedKeys) - 1
		}
		candidate := sortedKeys[idx]
		if len(bounds) > 0 {
			last := bounds[len(bounds)-1]
			if !less(last, candidate) && !less(candidate, last) {
				continue // duplicate bound, skip
			}
		}
		bounds = append(bounds, candidate)
	}
	return bounds
}

// NumPartitions implements Partitioner.
func (r *RangePartitioner) NumPartitions() int { return r.n }

// PartitionIndexOf returns the smallest index i such that key < bounds[i],
// or n-1 if the key is greater than every bound (spec §4.1).
func (r *RangePartitioner) PartitionIndexOf(key Elem) int {
	for i, b := range r.bounds {
		if r.less(key, b) {
			return i
		}
	}
	return r.n - 1
}
