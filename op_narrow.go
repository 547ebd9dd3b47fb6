package skale

import (
	"context"
	"sync"
)

// narrowOp is the shared shape behind every narrow operator: a name and a
// pure fn(batch) -> (batch, error). Individual constructors below just
// plug in the right fn, mirroring the teacher's one-struct-per-operator
// convention (mapper.go, filter.go) collapsed into one generic carrier
// since every narrow operator here has the same Transform contract.
type narrowOp struct {
	opName string
	fn     func(ctx context.Context, in []Elem) ([]Elem, error)
}

func (n *narrowOp) Name() string { return n.opName }

func (n *narrowOp) Transform(ctx context.Context, in []Elem) ([]Elem, error) {
	return n.fn(ctx, in)
}

func newNarrow(e *Engine, parent *Dataset, opName string, fn func(context.Context, []Elem) ([]Elem, error)) *Dataset {
	op := &narrowOp{opName: opName, fn: fn}
	return newDataset(e, KindNarrow, []*Dataset{parent}, op, 0)
}

// Map transforms each element of d using f. Grounded on the teacher's
// Mapper[In,Out] (mapper.go): one function, applied element-wise, fused
// into the pipeline rather than run in its own goroutine/channel.
func Map[T, U any](d *Dataset, f func(T) U) *Dataset {
	return newNarrow(d.engine, d, "map", func(_ context.Context, in []Elem) ([]Elem, error) {
		out := make([]Elem, len(in))
		for i, e := range in {
			out[i] = f(e.(T))
		}
		return out, nil
	})
}

// MapErr is Map for functions that can fail; the error aborts the stage
// task the way a shuffle-write failure does (spec §7 "task errors").
func MapErr[T, U any](d *Dataset, f func(T) (U, error)) *Dataset {
	return newNarrow(d.engine, d, "map", func(_ context.Context, in []Elem) ([]Elem, error) {
		out := make([]Elem, len(in))
		for i, e := range in {
			v, err := f(e.(T))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	})
}

// FlatMap expands each element of d into zero or more outputs, preserving
// order. Grounded on the teacher's Flatten[T] (flatten.go), generalized
// from "flatten a stream of slices" to "map-then-flatten in one fused
// step" since there is no intermediate channel to flatten here.
func FlatMap[T, U any](d *Dataset, f func(T) []U) *Dataset {
	return newNarrow(d.engine, d, "flatMap", func(_ context.Context, in []Elem) ([]Elem, error) {
		var out []Elem
		for _, e := range in {
			for _, v := range f(e.(T)) {
				out = append(out, v)
			}
		}
		return out, nil
	})
}

// MapValues applies f to the Value of each Pair, leaving Key untouched.
func MapValues[V, U any](d *Dataset, f func(V) U) *Dataset {
	ds := newNarrow(d.engine, d, "mapValues", func(_ context.Context, in []Elem) ([]Elem, error) {
		out := make([]Elem, len(in))
		for i, e := range in {
			p := e.(Pair)
			out[i] = Pair{Key: p.Key, Value: f(p.Value.(V))}
		}
		return out, nil
	})
	ds.setPartitioner(d.Partitioner())
	return ds
}

// FlatMapValues expands each Pair's Value into zero or more values, pairing
// each with the original Key.
func FlatMapValues[V, U any](d *Dataset, f func(V) []U) *Dataset {
	ds := newNarrow(d.engine, d, "flatMapValues", func(_ context.Context, in []Elem) ([]Elem, error) {
		var out []Elem
		for _, e := range in {
			p := e.(Pair)
			for _, v := range f(p.Value.(V)) {
				out = append(out, Pair{Key: p.Key, Value: v})
			}
		}
		return out, nil
	})
	ds.setPartitioner(d.Partitioner())
	return ds
}

// Filter keeps only elements for which pred returns true. Grounded on the
// teacher's Filter[T] (filter.go): a pure predicate, non-matching items
// silently dropped.
func Filter[T any](d *Dataset, pred func(T) bool) *Dataset {
	ds := newNarrow(d.engine, d, "filter", func(_ context.Context, in []Elem) ([]Elem, error) {
		var out []Elem
		for _, e := range in {
			if pred(e.(T)) {
				out = append(out, e)
			}
		}
		return out, nil
	})
	ds.setPartitioner(d.Partitioner())
	return ds
}

// Glom returns each partition's entire contents as a single []Elem element
// (supplemented operator, SPEC_FULL.md §4).
func Glom(d *Dataset) *Dataset {
	return newNarrow(d.engine, d, "glom", func(_ context.Context, in []Elem) ([]Elem, error) {
		if len(in) == 0 {
			return nil, nil
		}
		cp := make([]Elem, len(in))
		copy(cp, in)
		return []Elem{cp}, nil
	})
}

// Sample selects elements from d according to spec §4.3: Bernoulli when
// withReplacement is false, Poisson (via the deterministic xorshift RNG)
// otherwise, seeded as given so results are bit-reproducible. Every
// partition gets its own RNG instance, seeded from seed mixed with the
// partition index rather than sharing one xorshiftRNG across every
// partition's goroutine: runJob dispatches one goroutine per partition
// (up to DefaultMaxBusy concurrently, all of them by default), and a
// shared RNG's unsynchronized state would both race and make the result
// depend on however those goroutines happened to interleave (spec §9
// "must be bit-reproducible").
func Sample(d *Dataset, fraction float64, withReplacement bool, seed int64) *Dataset {
	var mu sync.Mutex
	rngs := make(map[int]*xorshiftRNG)
	rngFor := func(ctx context.Context) *xorshiftRNG {
		idx := partitionIndexFromContext(ctx)
		mu.Lock()
		defer mu.Unlock()
		r, ok := rngs[idx]
		if !ok {
			r = newXorshiftRNG(seed + int64(idx))
			rngs[idx] = r
		}
		return r
	}
	return newNarrow(d.engine, d, "sample", func(ctx context.Context, in []Elem) ([]Elem, error) {
		rng := rngFor(ctx)
		var out []Elem
		for _, e := range in {
			if withReplacement {
				copies := rng.poisson(fraction)
				for i := 0; i < copies; i++ {
					out = append(out, e)
				}
				continue
			}
			if rng.float64() < fraction {
				out = append(out, e)
			}
		}
		return out, nil
	})
}

// unionOp is the identity narrow transform backing Union: it never
// rewrites elements, only how partitions are derived (spec §4.3 "Union
// (identity transform)").
type unionOp struct{}

func (*unionOp) Name() string { return "union" }

func (*unionOp) Transform(_ context.Context, in []Elem) ([]Elem, error) { return in, nil }

// partitions implements the special partition-count rule for Union:
// partition count is the sum of both parents'; new partition i proxies
// parent0[i] when i < len(parent0), else parent1[i-len(parent0)] (spec §3).
func (*unionOp) partitions(ctx context.Context, d *Dataset) ([]*Partition, error) {
	left, right := d.parents[0], d.parents[1]
	lp, err := left.getPartitions(ctx)
	if err != nil {
		return nil, err
	}
	rp, err := right.getPartitions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Partition, 0, len(lp)+len(rp))
	for i := range lp {
		out = append(out, &Partition{DatasetID: d.id, Index: len(out), ParentIndex: i})
	}
	for i := range rp {
		out = append(out, &Partition{DatasetID: d.id, Index: len(out), ParentIndex: i})
	}
	return out, nil
}

// Union concatenates two datasets' partitions without reshuffling: output
// partition i proxies parent0[i] for i < |parent0|, else parent1.
func Union(a, b *Dataset) *Dataset {
	return newDataset(a.engine, KindNarrow, []*Dataset{a, b}, &unionOp{}, 0)
}

// unionSource picks which parent (and which of its partitions) partition
// index i of a Union dataset proxies, used by the planner/pipeline to
// build the correct source chain.
func unionSource(d *Dataset, outIdx int) (parent *Dataset, parentIdx int) {
	left := d.parents[0]
	// leftWidth is recomputed rather than cached on Partition because the
	// Partition struct intentionally carries no back-pointer to its
	// dataset's sibling widths (spec §9 "handle passed into the call, not
	// shared state").
	leftParts, _ := left.getPartitions(context.Background())
	if outIdx < len(leftParts) {
		return left, outIdx
	}
	return d.parents[1], outIdx - len(leftParts)
}
