package skale

import "context"

// buildChain walks upward from d through its narrow ancestors, stopping at
// the first source, wide, or union dataset — the fused chain runs from
// that boundary down to d with no intermediate materialization (spec
// §4.4). Union is its own boundary because it has no single parent to
// keep walking into; the caller resolves the right parent via
// unionSource instead.
func buildChain(d *Dataset) (base *Dataset, chain []*Dataset) {
	for d.Kind() == KindNarrow {
		if _, ok := d.op.(*unionOp); ok {
			return d, chain
		}
		chain = append([]*Dataset{d}, chain...)
		d = d.parents[0]
	}
	return d, chain
}

// fuseNarrow wraps in with op, propagating single-element batches through
// Transform so no stage ever materializes a whole partition in memory
// just to hand it to the next operator (spec §4.4). When part is
// non-nil the dataset owning op is persisted: every output batch is also
// appended to part's buffer and sampled for eviction (spec §4.2).
func fuseNarrow(ctx context.Context, in RecordIterator, op NarrowOperator, part *Partition, mm *MemoryManager, sampleEvery int) RecordIterator {
	var buf []Elem
	bi := 0
	filling := part != nil && part.beginFill()
	done := false
	return func() (Elem, bool, error) {
		for {
			if bi < len(buf) {
				v := buf[bi]
				bi++
				return v, true, nil
			}
			if done {
				return nil, false, nil
			}
			e, ok, err := in()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				done = true
				if filling {
					part.finishFill()
				}
				continue
			}
			out, err := op.Transform(ctx, []Elem{e})
			if err != nil {
				return nil, false, err
			}
			if filling {
				part.appendAndSample(out, mm, sampleEvery)
			}
			buf, bi = out, 0
		}
	}
}

// partitionIndexKey is the context key runChain uses to tell a narrow
// operator's Transform which partition it is running for — needed by any
// operator (e.g. Sample) whose per-element behavior must stay isolated and
// deterministic per partition even though the same op.Transform closure is
// shared across every partition's concurrent goroutine (spec §9 "must be
// bit-reproducible").
type partitionIndexKey struct{}

func withPartitionIndex(ctx context.Context, idx int) context.Context {
	return context.WithValue(ctx, partitionIndexKey{}, idx)
}

// partitionIndexFromContext recovers the index set by withPartitionIndex,
// or 0 if none was set (e.g. a direct unit-test call to Transform).
func partitionIndexFromContext(ctx context.Context) int {
	idx, _ := ctx.Value(partitionIndexKey{}).(int)
	return idx
}

// runChain runs a narrow-dataset chain for partition index idx over input
// iterator in, inserting a persistence buffer wherever the chain passes
// through a persisted dataset. A dataset whose partition buffer is
// already ready replays it directly instead of recomputing upstream work
// (spec §3 "a persisted dataset, once computed, replays its buffer on
// subsequent jobs").
func runChain(ctx context.Context, chain []*Dataset, idx int, in RecordIterator, mm *MemoryManager, cfg Config) (RecordIterator, error) {
	ctx = withPartitionIndex(ctx, idx)
	cur := in
	for _, ds := range chain {
		op := ds.op.(NarrowOperator)

		var part *Partition
		if ds.IsPersisted() {
			parts, err := ds.getPartitions(ctx)
			if err != nil {
				return nil, err
			}
			part = parts[idx]
			if part.IsReady() {
				cur = part.replayIterator()
				continue
			}
			if part.IsEvicted() {
				part = nil
			}
		}
		cur = fuseNarrow(ctx, cur, op, part, mm, cfg.SampleEvery)
	}
	return cur, nil
}

// chainSegment is one narrow run together with the partition index every
// dataset in it shares (narrow preserves partition identity, so one index
// covers the whole segment; crossing a union changes the index, which is
// why a resolved path is a list of segments, not one flat chain+index).
type chainSegment struct {
	idx   int
	chain []*Dataset
}

// resolveBase walks from d, through any number of narrow runs and union
// boundaries, down to the nearest source or wide dataset — the point
// where this partition's data must actually be produced (by a source
// read or a shuffle read) rather than derived from a parent in-process.
func resolveBase(d *Dataset, idx int) (base *Dataset, baseIdx int, segs []chainSegment) {
	b, chain := buildChain(d)
	seg := chainSegment{idx: idx, chain: chain}
	if b.Kind() == KindSource || b.Kind() == KindWide {
		return b, idx, []chainSegment{seg}
	}
	parent, parentIdx := unionSource(b, idx)
	pbase, pidx, psegs := resolveBase(parent, parentIdx)
	return pbase, pidx, append(psegs, seg)
}
