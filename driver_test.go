package skale

import (
	"context"
	"testing"
)

func TestRunJobResultsIndexedByPartitionRegardlessOfCompletionOrder(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()
	jc := eng.localJobCtx()

	d := Parallelize(eng, []int{10, 20, 30, 40, 50}, 5)
	results, err := runJob(ctx, jc, d, jobOptions{})
	if err != nil {
		t.Fatalf("runJob: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 partitions, got %d", len(results))
	}
	want := []int{10, 20, 30, 40, 50}
	for i, part := range results {
		if len(part) != 1 || part[0].(int) != want[i] {
			t.Fatalf("partition %d: got %v, want [%d]", i, part, want[i])
		}
	}
}

func TestRunJobLIFOReversesDispatchOrderButNotResultIndexing(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()
	jc := eng.localJobCtx()

	d := Parallelize(eng, []int{1, 2, 3}, 3)
	results, err := runJob(ctx, jc, d, jobOptions{LIFO: true})
	if err != nil {
		t.Fatalf("runJob: %v", err)
	}
	// LIFO only changes the order tasks are dispatched in; results must
	// still land at their own partition index.
	for i, want := range []int{1, 2, 3} {
		if len(results[i]) != 1 || results[i][0].(int) != want {
			t.Fatalf("partition %d: got %v, want [%d]", i, results[i], want)
		}
	}
}

func TestRunJobMaxShortCircuitsRemainingPartitions(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()
	jc := eng.localJobCtx()

	d := Parallelize(eng, []int{1, 2, 3, 4, 5}, 5)
	results, err := runJob(ctx, jc, d, jobOptions{MaxBusy: 1, LIFO: true, Max: 1})
	if err != nil {
		t.Fatalf("runJob: %v", err)
	}

	nonEmpty := 0
	for _, part := range results {
		if len(part) > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 1 {
		t.Fatalf("expected at least one completed partition before the Max short-circuit, got none")
	}
	if nonEmpty >= len(results) {
		t.Fatalf("expected Max=1 with MaxBusy=1 to short-circuit before all 5 partitions ran, got %d completed", nonEmpty)
	}
}
