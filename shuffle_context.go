package skale

import (
	"github.com/shankscript/skale-engine/ports"
	"github.com/shankscript/skale-engine/shuffle"
)

// ShuffleWriteContext is handed to WideOperator.SpillToDisk for one
// upstream (parent, partition) pipeline: the fused input for that
// partition, a shuffle.Writer already sized to the dataset's output
// width, the partitioner used to route each element to an output file,
// and which parent (0 for single-parent operators, 0 or 1 for Cartesian
// / CoGroup) this input belongs to (spec §4.6 "map side").
type ShuffleWriteContext struct {
	Input       RecordIterator
	Writer      *shuffle.Writer
	NumOutputs  int
	Partitioner Partitioner
	ParentIndex int

	// upstreamIdx is the upstream partition index this spill call is
	// running for. Most wide operators never need it (routing is purely
	// key-based), but Cartesian does, since its map side broadcasts by
	// upstream position rather than by key.
	upstreamIdx int
}

// ShuffleReadContext is handed to WideOperator.ReadAndAggregate for one
// output partition. DescriptorsByParent[p] holds every upstream partition
// of parent p's shuffle file contributing to this output partition,
// ordered by upstream partition id (spec §4.6 "reduce side"); entries are
// nil where that upstream partition produced nothing for this output.
type ShuffleReadContext struct {
	OutputPartition    int
	DescriptorsByParent [][]*shuffle.Descriptor
	ReadStream         ports.ReadStream
}

// Reader builds a shuffle.Reader over parent p's descriptors for this
// output partition.
func (sr *ShuffleReadContext) Reader(parent int) *shuffle.Reader {
	return shuffle.NewReader(sr.ReadStream, sr.DescriptorsByParent[parent])
}
