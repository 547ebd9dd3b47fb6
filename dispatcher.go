package skale

import "context"

// PartitionTask identifies one partition of a dataset to compute — the
// {dataset, partition index} payload a ports.Dispatcher implementation
// carries across its RunTask boundary (spec §6 "runTask(task, callback)").
// runJob uses the in-process jobCtx directly and never constructs one of
// these itself; PartitionTask exists for external ports.Dispatcher
// implementations (see skale/local) that need an opaque, serializable-
// shaped task value to hand to RunTask.
type PartitionTask struct {
	Dataset *Dataset
	Index   int
}

// RunPartitionTask computes one partition task against eng's local worker
// resources. A ports.Dispatcher implementation backed by this engine (such
// as skale/local.Dispatcher) calls this from inside its RunTask to actually
// do the work; the dispatcher itself only owns transport and scheduling.
func RunPartitionTask(ctx context.Context, eng *Engine, task PartitionTask) ([]Elem, error) {
	jc := eng.localJobCtx()
	return computePartitionElems(ctx, jc, task.Dataset, task.Index)
}
