package skale

import "sync"

// bufferState is the lifecycle of a persisted partition's in-memory buffer
// (spec §3 "Lifecycles", §4.2 "monotonic per partition").
type bufferState int

const (
	// bufferNone: not persisted, or persisted but never yet iterated.
	bufferNone bufferState = iota
	// bufferFilling: currently being populated by an in-flight iteration.
	bufferFilling
	// bufferReady: fully populated and available for replay.
	bufferReady
	// bufferEvicted: was populated, then dropped under memory pressure;
	// never re-populated for the lifetime of this Partition value, in this
	// job or any later one — later iterations recompute from parents.
	bufferEvicted
)

// Partition is a unit of parallel work within one dataset (spec §3).
type Partition struct {
	// DatasetID is the owning dataset's id.
	DatasetID int64
	// Index is this partition's position within its dataset.
	Index int
	// ParentIndex is set for narrow 1:1 mappings; -1 when not applicable.
	ParentIndex int
	// PreferredLocation is an optional scheduling hint (e.g. an HDFS
	// block's hostname); the scheduler is expected to honor it (spec §4.7).
	PreferredLocation string
	// Path is set for file-backed source partitions.
	Path string
	// RangeStart/RangeEnd bound a byte range for text-source partitions.
	RangeStart int64
	RangeEnd   int64

	mu            sync.Mutex
	state         bufferState
	buffer        []Elem
	bufferedBytes int64
	sinceSample   int
	lastSampleLen int
}

// NewPartition creates a partition descriptor. Most callers go through a
// SourceOperator.GetPartitions or the narrow/wide partition-derivation
// helpers in dataset.go instead of calling this directly.
func NewPartition(datasetID int64, index int) *Partition {
	return &Partition{DatasetID: datasetID, Index: index, ParentIndex: -1}
}

// IsEvicted reports whether this partition's buffer has been dropped under
// memory pressure. An evicted buffer is never repopulated.
func (p *Partition) IsEvicted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == bufferEvicted
}

// IsReady reports whether a full, replayable buffer is available.
func (p *Partition) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == bufferReady
}

// replayIterator returns an iterator over the current buffer contents.
// Callers must already know IsReady() is true.
func (p *Partition) replayIterator() RecordIterator {
	p.mu.Lock()
	data := make([]Elem, len(p.buffer))
	copy(data, p.buffer)
	p.mu.Unlock()
	return sliceIterator(data)
}

// beginFill transitions an empty partition into "filling" state so a
// concurrent second iteration doesn't also try to populate it. Returns
// false if the partition is already filling, ready, or evicted — the
// caller should fall back to a plain (non-buffering) pass-through.
func (p *Partition) beginFill() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != bufferNone {
		return false
	}
	p.state = bufferFilling
	p.buffer = p.buffer[:0]
	return true
}

// appendAndSample appends one output batch to the buffer, takes a size
// sample every SampleEvery elements, and reports whether the partition was
// just evicted as a result (spec §4.2: "every 10,000 elements it takes a
// size sample (cost of the most recent batch), adds that estimate to
// storageMemory" — only the bytes added since the previous sample are
// estimated and reserved, not the whole accumulated buffer, so
// storageMemory grows linearly with element count rather than
// quadratically).
func (p *Partition) appendAndSample(batch []Elem, mm *MemoryManager, sampleEvery int) (evicted bool) {
	p.mu.Lock()
	if p.state != bufferFilling {
		p.mu.Unlock()
		return false
	}
	p.buffer = append(p.buffer, batch...)
	p.sinceSample += len(batch)
	sample := p.sinceSample >= sampleEvery
	var delta int64
	if sample {
		p.sinceSample = 0
		delta = estimateSize(p.buffer[p.lastSampleLen:])
		p.lastSampleLen = len(p.buffer)
	}
	p.mu.Unlock()

	if !sample || mm == nil {
		return false
	}

	over := mm.Reserve(delta)
	p.mu.Lock()
	p.bufferedBytes += delta
	total := p.bufferedBytes
	p.mu.Unlock()

	if over {
		p.evict(mm, total)
		return true
	}
	return false
}

// finishFill marks a partition as fully populated, unless it was evicted
// mid-fill.
func (p *Partition) finishFill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == bufferFilling {
		p.state = bufferReady
	}
}

// evict drops the buffer, subtracts the estimate back out of the memory
// manager, and moves the partition to the terminal evicted state. Eviction
// is monotonic: once evicted, a partition never re-enters bufferFilling
// for the lifetime of this Partition value (spec §4.2).
func (p *Partition) evict(mm *MemoryManager, reserved int64) {
	p.mu.Lock()
	p.buffer = nil
	p.bufferedBytes = 0
	p.state = bufferEvicted
	p.mu.Unlock()
	if mm != nil {
		mm.Release(reserved)
	}
}
