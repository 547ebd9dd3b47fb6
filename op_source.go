package skale

import "context"

// indexSource is the generic index-driven source backing Parallelize and
// Range (spec §4.3): data lives in-memory, sliced evenly across
// partitions with no file or network I/O involved.
type indexSource struct {
	data []Elem
	n    int
}

func (s *indexSource) Name() string { return "parallelize" }

func (s *indexSource) GetPartitions(_ context.Context) ([]*Partition, error) {
	n := s.n
	if n < 1 {
		n = 1
	}
	if n > len(s.data) && len(s.data) > 0 {
		n = len(s.data)
	}
	parts := make([]*Partition, n)
	for i := 0; i < n; i++ {
		parts[i] = &Partition{Index: i, ParentIndex: -1}
	}
	return parts, nil
}

func (s *indexSource) Open(_ context.Context, p *Partition) (RecordIterator, error) {
	n := s.n
	if n < 1 {
		n = 1
	}
	if n > len(s.data) && len(s.data) > 0 {
		n = len(s.data)
	}
	lo, hi := splitRange(len(s.data), n, p.Index)
	return sliceIterator(s.data[lo:hi]), nil
}

// splitRange divides total items into n approximately equal, contiguous
// ranges and returns the [lo, hi) bounds for partition index idx — the
// same even-split rule spec §4.7 uses for text-source byte ranges.
func splitRange(total, n, idx int) (lo, hi int) {
	if n <= 0 {
		return 0, total
	}
	base := total / n
	rem := total % n
	lo = idx*base + minInt(idx, rem)
	hi = lo + base
	if idx < rem {
		hi++
	}
	if hi > total {
		hi = total
	}
	return lo, hi
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Parallelize distributes an in-memory slice across numPartitions
// partitions (spec §4.3).
func Parallelize[T any](e *Engine, data []T, numPartitions int) *Dataset {
	boxed := make([]Elem, len(data))
	for i, v := range data {
		boxed[i] = v
	}
	return newDataset(e, KindSource, nil, &indexSource{data: boxed, n: numPartitions}, 0)
}

// NewSourceDataset builds a Dataset from a custom SourceOperator — the
// hook external packages (skale/source) use to add new source kinds
// without the core needing to know about them.
func NewSourceDataset(e *Engine, op SourceOperator) *Dataset {
	return newDataset(e, KindSource, nil, op, 0)
}

// Range produces int64 elements from start (inclusive) to end (exclusive)
// stepping by step, split across numPartitions partitions (spec §4.3).
func Range(e *Engine, start, end, step int64, numPartitions int) *Dataset {
	var data []Elem
	if step == 0 {
		step = 1
	}
	if step > 0 {
		for v := start; v < end; v += step {
			data = append(data, v)
		}
	} else {
		for v := start; v > end; v += step {
			data = append(data, v)
		}
	}
	return newDataset(e, KindSource, nil, &indexSource{data: data, n: numPartitions}, 0)
}
