// Package local provides the simplest concrete ports.Dispatcher: a single
// in-process "worker" that runs every dispatched PartitionTask against the
// owning Engine's own resources. It stands in for the real multi-host RPC
// dispatcher that spec.md §1 puts out of scope for the core.
package local

import (
	"context"
	"fmt"

	skale "github.com/shankscript/skale-engine"
	"github.com/shankscript/skale-engine/ports"
)

// Dispatcher runs every task against a single local Worker.
type Dispatcher struct {
	Engine *skale.Engine
	worker ports.Worker
}

// New returns a Dispatcher bound to eng, advertising one local worker.
func New(eng *skale.Engine) *Dispatcher {
	return &Dispatcher{
		Engine: eng,
		worker: ports.Worker{ID: "local", Host: "local", Capacity: 1},
	}
}

// Workers reports the single local worker this Dispatcher runs tasks on.
func (d *Dispatcher) Workers() []ports.Worker { return []ports.Worker{d.worker} }

// RunTask executes task (expected to be a skale.PartitionTask) and reports
// its outcome on the returned channel once.
func (d *Dispatcher) RunTask(ctx context.Context, w ports.Worker, task interface{}) (<-chan ports.TaskResult, error) {
	pt, ok := task.(skale.PartitionTask)
	if !ok {
		return nil, fmt.Errorf("skale/local: unsupported task type %T", task)
	}

	out := make(chan ports.TaskResult, 1)
	go func() {
		defer close(out)
		elems, err := skale.RunPartitionTask(ctx, d.Engine, pt)
		out <- ports.TaskResult{Value: elems, Err: err}
	}()
	return out, nil
}
