package skale

import (
	"fmt"
	"time"
)

// TaskError describes a failure that occurred while executing one task.
// It mirrors the teacher's StreamError[T] shape (item/processor/err/time)
// but is keyed by stage and partition instead of a processor name, since a
// task is the unit of failure in this engine rather than a single element.
type TaskError struct {
	Err       error
	StageName string
	Timestamp time.Time
	StageID   int
	Partition int
}

// NewTaskError wraps err with the stage/partition context that produced it.
func NewTaskError(stageID, partition int, stageName string, err error) *TaskError {
	return &TaskError{
		StageID:   stageID,
		Partition: partition,
		StageName: stageName,
		Err:       err,
		Timestamp: time.Now(),
	}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("skale: stage %d (%s) partition %d: %v", e.StageID, e.StageName, e.Partition, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// ProgrammerError marks a synchronous, caller-fault error: a bad argument to
// a constructor such as Parallelize, a nil function, or a malformed option.
// These fail the call immediately rather than surfacing through a task.
type ProgrammerError struct {
	Msg string
}

func (e *ProgrammerError) Error() string { return "skale: " + e.Msg }

func programmerErrorf(format string, args ...interface{}) error {
	return &ProgrammerError{Msg: fmt.Sprintf(format, args...)}
}

// SourceError marks a failure that occurred while splitting a source into
// partitions (listing failure, stat failure) — it fails getPartitions and
// therefore the whole job, per spec §7.
type SourceError struct {
	Err    error
	Source string
}

func (e *SourceError) Error() string { return fmt.Sprintf("skale: source %q: %v", e.Source, e.Err) }
func (e *SourceError) Unwrap() error { return e.Err }

// ShuffleError marks a fatal shuffle I/O failure (spill write or remote
// read). Per spec §7 these abort the job; there is no partial-output path
// for shuffle failures the way there is for save() upload failures.
type ShuffleError struct {
	Err   error
	Phase string // "write" or "read"
}

func (e *ShuffleError) Error() string { return fmt.Sprintf("skale: shuffle %s: %v", e.Phase, e.Err) }
func (e *ShuffleError) Unwrap() error { return e.Err }
