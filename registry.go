package skale

import (
	"sync"

	"github.com/shankscript/skale-engine/shuffle"
)

// shuffleKey identifies one upstream partition's spill output for one
// parent of one wide dataset.
type shuffleKey struct {
	DatasetID int64
	Parent    int
	Upstream  int
}

// shuffleRegistry is the in-process stand-in for the descriptor directory
// a real cluster keeps on its driver: map tasks register the files they
// wrote, and reduce tasks look them up by upstream partition id
// (spec §4.6). One registry is shared by every task of one job.
type shuffleRegistry struct {
	mu    sync.Mutex
	byKey map[shuffleKey][]*shuffle.Descriptor // indexed by output partition
}

func newShuffleRegistry() *shuffleRegistry {
	return &shuffleRegistry{byKey: make(map[shuffleKey][]*shuffle.Descriptor)}
}

func (r *shuffleRegistry) put(datasetID int64, parent, upstream int, descs []*shuffle.Descriptor) {
	r.mu.Lock()
	r.byKey[shuffleKey{datasetID, parent, upstream}] = descs
	r.mu.Unlock()
}

// descriptorsForOutput returns, for one (datasetID, parent, output
// partition), the descriptor contributed by each of numUpstream upstream
// partitions, in ascending upstream-partition order (nil where that
// upstream partition produced nothing for this output).
func (r *shuffleRegistry) descriptorsForOutput(datasetID int64, parent, numUpstream, outputPartition int) []*shuffle.Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*shuffle.Descriptor, numUpstream)
	for u := 0; u < numUpstream; u++ {
		descs := r.byKey[shuffleKey{datasetID, parent, u}]
		if descs != nil && outputPartition < len(descs) {
			out[u] = descs[outputPartition]
		}
	}
	return out
}
