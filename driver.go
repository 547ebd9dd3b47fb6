package skale

import (
	"context"
	"sync"

	"github.com/shankscript/skale-engine/ports"
	"github.com/shankscript/skale-engine/shuffle"
)

// jobCtx carries everything one job run needs that is not already on the
// Dataset graph itself: the worker-local resources (filesystem, remote
// read transport, memory manager) and a registry of shuffle descriptors
// shared by every task of this run, plus memoization of completed spills
// so that N output partitions reading the same upstream partition only
// trigger one map-side pass over it (spec §4.5/§4.6).
type jobCtx struct {
	eng        *Engine
	fs         ports.FileSystem
	rs         ports.ReadStream
	mm         *MemoryManager
	scratchDir string
	host       string

	registry *shuffleRegistry

	mu      sync.Mutex
	spilled map[shuffleKey]struct{}
}

// newJobCtx creates a jobCtx for one job run.
func newJobCtx(eng *Engine, fs ports.FileSystem, rs ports.ReadStream, mm *MemoryManager, scratchDir, host string) *jobCtx {
	return &jobCtx{
		eng:        eng,
		fs:         fs,
		rs:         rs,
		mm:         mm,
		scratchDir: scratchDir,
		host:       host,
		registry:   newShuffleRegistry(),
		spilled:    make(map[shuffleKey]struct{}),
	}
}

func (jc *jobCtx) markSpilled(k shuffleKey) (already bool) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	if _, ok := jc.spilled[k]; ok {
		return true
	}
	jc.spilled[k] = struct{}{}
	return false
}

// ensureSpilled runs the map side of wide's parent[parentIdx] partition
// upstreamIdx exactly once per job, registering the resulting descriptors.
func ensureSpilled(ctx context.Context, jc *jobCtx, wide *Dataset, parentIdx, upstreamIdx int) error {
	key := shuffleKey{DatasetID: wide.id, Parent: parentIdx, Upstream: upstreamIdx}
	if jc.markSpilled(key) {
		return nil
	}

	parent := wide.parents[parentIdx]
	elems, err := computePartitionElems(ctx, jc, parent, upstreamIdx)
	if err != nil {
		return err
	}

	numOutputs, err := wide.NumPartitions(ctx)
	if err != nil {
		return err
	}
	partitioner := wide.Partitioner()
	if partitioner == nil {
		partitioner = NewHashPartitioner(numOutputs)
	}

	w := shuffle.NewWriter(jc.fs, jc.host, jc.scratchDir, numOutputs, jc.eng.cfg.ShuffleFlushBytes)
	sw := &ShuffleWriteContext{
		Input:       sliceIterator(elems),
		Writer:      w,
		NumOutputs:  numOutputs,
		Partitioner: partitioner,
		ParentIndex: parentIdx,
		upstreamIdx: upstreamIdx,
	}
	if err := wide.op.(WideOperator).SpillToDisk(ctx, sw); err != nil {
		return &ShuffleError{Err: err, Phase: "write"}
	}
	descs, err := w.Close()
	if err != nil {
		return &ShuffleError{Err: err, Phase: "write"}
	}
	jc.registry.put(wide.id, parentIdx, upstreamIdx, descs)
	return nil
}

// computePartitionElems materializes one partition of d: it resolves the
// narrow/union chain down to a source or wide base, produces that base's
// elements (a source read, or a shuffle read preceded by spilling every
// contributing upstream partition), then replays the chain segments back
// up to d (spec §4.4/§4.5).
func computePartitionElems(ctx context.Context, jc *jobCtx, d *Dataset, idx int) ([]Elem, error) {
	base, baseIdx, segs := resolveBase(d, idx)

	var in RecordIterator
	switch base.Kind() {
	case KindSource:
		parts, err := base.getPartitions(ctx)
		if err != nil {
			return nil, err
		}
		it, err := base.op.(SourceOperator).Open(ctx, parts[baseIdx])
		if err != nil {
			return nil, wrapSourceErr(base.Name(), err)
		}
		in = it

	case KindWide:
		wop := base.op.(WideOperator)
		byParent := make([][]*shuffle.Descriptor, len(base.parents))
		for p, parent := range base.parents {
			width, err := parent.NumPartitions(ctx)
			if err != nil {
				return nil, err
			}
			for u := 0; u < width; u++ {
				if err := ensureSpilled(ctx, jc, base, p, u); err != nil {
					return nil, err
				}
			}
			byParent[p] = jc.registry.descriptorsForOutput(base.id, p, width, baseIdx)
		}
		sr := &ShuffleReadContext{OutputPartition: baseIdx, DescriptorsByParent: byParent, ReadStream: jc.rs}
		elems, err := wop.ReadAndAggregate(ctx, sr)
		if err != nil {
			return nil, &ShuffleError{Err: err, Phase: "read"}
		}
		in = sliceIterator(elems)
	}

	cur := in
	for _, seg := range segs {
		var err error
		cur, err = runChain(ctx, seg.chain, seg.idx, cur, jc.mm, jc.eng.cfg)
		if err != nil {
			return nil, err
		}
	}

	var out []Elem
	for {
		e, ok, err := cur()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// jobOptions mirrors the action table's dispatch controls (spec §6):
// MaxBusy bounds how many partition tasks run concurrently (default: all
// of them at once), LIFO reverses dispatch order (used by top to
// prefer the last partitions first when pulling from the tail), and Max
// short-circuits the run once that many elements have been produced
// across completed partitions, canceling tasks not yet started.
type jobOptions struct {
	MaxBusy int
	LIFO    bool
	Max     int
}

// runJob computes every partition of target, honoring opt, and returns
// one []Elem per partition index (nil for partitions skipped by an
// opt.Max short-circuit). Results are always indexed by partition number
// regardless of completion order, so callers combine them in a fixed,
// reproducible order even though real dispatch completion order is not
// deterministic (spec §6 "ordering-robust combine").
func runJob(ctx context.Context, jc *jobCtx, target *Dataset, opt jobOptions) ([][]Elem, error) {
	n, err := target.NumPartitions(ctx)
	if err != nil {
		return nil, err
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if opt.LIFO {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	busy := opt.MaxBusy
	if busy <= 0 || busy > n {
		busy = n
	}
	if busy < 1 {
		busy = 1
	}

	results := make([][]Elem, n)
	errs := make([]error, n)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, busy)
	var wg sync.WaitGroup
	var mu sync.Mutex
	collected := 0

	for _, idx := range order {
		if cctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-cctx.Done():
		}
		if cctx.Err() != nil {
			break
		}

		idx := idx
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			elems, err := computePartitionElems(cctx, jc, target, idx)

			mu.Lock()
			defer mu.Unlock()
			results[idx] = elems
			errs[idx] = err
			if err == nil && opt.Max > 0 {
				collected += len(elems)
				if collected >= opt.Max {
					cancel()
				}
			}
		}()
	}
	wg.Wait()

	for i, e := range errs {
		if e != nil {
			return nil, NewTaskError(0, i, target.Name(), e)
		}
	}
	return results, nil
}
