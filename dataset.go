package skale

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shankscript/skale-engine/localfs"
	"github.com/shankscript/skale-engine/ports"
)

// Engine owns the dataset graph's identity space and engine-wide
// configuration. It holds no partition data itself — that lives in
// worker-owned partition buffers and shuffle files (spec §3 "Ownership").
// It also lazily owns the single simulated worker's resources (memory
// manager, scratch filesystem) that every action runs against — a
// stand-in for a
// real multi-worker cluster, which is out of scope for the core itself
// (spec.md §1).
type Engine struct {
	cfg    Config
	nextID int64

	localOnce sync.Once
	localMM   *MemoryManager
	localFS   ports.FileSystem
	localRS   ports.ReadStream
}

// NewEngine creates an Engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// localJobCtx returns the jobCtx backing this engine's single in-process
// simulated worker, creating its filesystem and memory manager on first
// use.
func (e *Engine) localJobCtx() *jobCtx {
	e.localOnce.Do(func() {
		e.localMM = NewMemoryManager(e.cfg.StorageCeiling)
		e.localFS = localfs.New()
		e.localRS = localfs.NewReadStream()
	})
	return newJobCtx(e, e.localFS, e.localRS, e.localMM, e.cfg.ScratchDir, "local")
}

func (e *Engine) allocID() int64 {
	return atomic.AddInt64(&e.nextID, 1)
}

// Dataset is a vertex in the lazy operator DAG (spec §3). Dataset ids are
// unique and assigned in construction order; the DAG is acyclic because a
// Dataset can only ever reference Datasets that already exist when it is
// built.
type Dataset struct {
	engine     *Engine
	id         int64
	parents    []*Dataset
	kind       Kind
	op         Operator
	persistent bool
	name       string

	mu            sync.Mutex
	partsComputed bool
	parts         []*Partition
	partsErr      error

	partitioner Partitioner
	width       int // configured output width for wide/source datasets
}

// newDataset is the single constructor every operator goes through, so
// that id assignment and parent bookkeeping stay centralized.
func newDataset(e *Engine, kind Kind, parents []*Dataset, op Operator, width int) *Dataset {
	return &Dataset{
		engine:  e,
		id:      e.allocID(),
		parents: parents,
		kind:    kind,
		op:      op,
		width:   width,
		name:    op.Name(),
	}
}

// ID returns this dataset's unique, monotonically assigned identifier.
func (d *Dataset) ID() int64 { return d.id }

// Kind returns which operator family this dataset belongs to.
func (d *Dataset) Kind() Kind { return d.kind }

// Name returns the underlying operator's name.
func (d *Dataset) Name() string { return d.name }

// Parents returns this dataset's dependency list.
func (d *Dataset) Parents() []*Dataset { return d.parents }

// Engine returns the owning Engine.
func (d *Dataset) Engine() *Engine { return d.engine }

// Persist marks this dataset for retention in worker memory across jobs
// (spec §3 "persistent flag"), subject to eviction under memory pressure.
func (d *Dataset) Persist() *Dataset {
	d.mu.Lock()
	d.persistent = true
	d.mu.Unlock()
	return d
}

// Unpersist clears the persistent flag. It does not force-evict an
// already-filled buffer; the buffer simply stops being consulted, because
// runChain only reads partition buffers of datasets that are persisted.
func (d *Dataset) Unpersist() *Dataset {
	d.mu.Lock()
	d.persistent = false
	d.mu.Unlock()
	return d
}

// IsPersisted reports the current persistent flag.
func (d *Dataset) IsPersisted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.persistent
}

// getPartitions materializes and memoizes this dataset's partitions,
// walking to parents as needed (spec §4.5 step 1: "for each node call
// getPartitions exactly once; memoize").
func (d *Dataset) getPartitions(ctx context.Context) ([]*Partition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.partsComputed {
		return d.parts, d.partsErr
	}
	d.partsComputed = true

	switch d.kind {
	case KindSource:
		parts, err := d.op.(SourceOperator).GetPartitions(ctx)
		d.parts, d.partsErr = parts, wrapSourceErr(d.name, err)
	case KindNarrow:
		d.parts, d.partsErr = d.narrowPartitions(ctx)
	case KindWide:
		d.parts, d.partsErr = d.widePartitions(ctx)
	}
	return d.parts, d.partsErr
}

func wrapSourceErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Source: name, Err: err}
}

// narrowPartitions implements spec §3's narrow invariant: partition count
// equals the parent's (or, for Union, the sum of both parents') and each
// output partition has exactly one parent partition.
func (d *Dataset) narrowPartitions(ctx context.Context) ([]*Partition, error) {
	if u, ok := d.op.(*unionOp); ok {
		return u.partitions(ctx, d)
	}

	parent := d.parents[0]
	pparts, err := parent.getPartitions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Partition, len(pparts))
	for i := range pparts {
		out[i] = &Partition{DatasetID: d.id, Index: i, ParentIndex: i}
	}
	return out, nil
}

// widePartitions implements spec §3's wide invariant: partition count
// equals the configured output width.
func (d *Dataset) widePartitions(ctx context.Context) ([]*Partition, error) {
	widths := make([]int, len(d.parents))
	for i, p := range d.parents {
		pparts, err := p.getPartitions(ctx)
		if err != nil {
			return nil, err
		}
		widths[i] = len(pparts)
	}

	n := d.width
	if n <= 0 {
		n = d.op.(WideOperator).NumOutputPartitions(widths)
	}
	out := make([]*Partition, n)
	for i := 0; i < n; i++ {
		out[i] = &Partition{DatasetID: d.id, Index: i, ParentIndex: -1}
	}
	return out, nil
}

// NumPartitions returns this dataset's partition count, computing it if
// necessary.
func (d *Dataset) NumPartitions(ctx context.Context) (int, error) {
	parts, err := d.getPartitions(ctx)
	if err != nil {
		return 0, err
	}
	return len(parts), nil
}

// Partitioner returns this dataset's partitioner, if it has one (spec §3:
// "A keyed dataset carries a partitioner whose numPartitions equals the
// dataset's nPartitions").
func (d *Dataset) Partitioner() Partitioner {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.partitioner
}

func (d *Dataset) setPartitioner(p Partitioner) {
	d.mu.Lock()
	d.partitioner = p
	d.mu.Unlock()
}
