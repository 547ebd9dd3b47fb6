// Package testing provides test utilities for skale.
package testing

import (
	"context"
	"sort"
	"testing"

	skale "github.com/shankscript/skale-engine"
)

// CollectTimed runs CollectTyped[T] against ctx, failing the test
// immediately on error rather than returning it — the shape most table
// tests want when a non-nil error is always a bug.
func CollectTimed[T any](t *testing.T, ctx context.Context, eng *skale.Engine, d *skale.Dataset) []T {
	t.Helper()

	out, err := skale.CollectTyped[T](ctx, eng, d)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	return out
}

// AssertElements compares got against want as sets (order-independent),
// via a user-supplied key function — the right equality notion for
// anything downstream of a shuffle, where reduce-side ordering isn't
// guaranteed.
func AssertElements[T any](t *testing.T, got, want []T, key func(T) string) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %d: %v", len(want), len(got), got)
	}
	gk := make([]string, len(got))
	wk := make([]string, len(want))
	for i, v := range got {
		gk[i] = key(v)
	}
	for i, v := range want {
		wk[i] = key(v)
	}
	sort.Strings(gk)
	sort.Strings(wk)
	for i := range gk {
		if gk[i] != wk[i] {
			t.Fatalf("element mismatch at sorted position %d: got %q, want %q (got=%v want=%v)", i, gk[i], wk[i], got, want)
		}
	}
}

// AssertOrdered compares got against want element by element, for
// narrow-only pipelines where ordering is guaranteed to be preserved.
func AssertOrdered[T comparable](t *testing.T, got, want []T) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %d: %v", len(want), len(got), got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

// RequirePartitionCount fails the test unless d has exactly n partitions.
func RequirePartitionCount(t *testing.T, ctx context.Context, d *skale.Dataset, n int) {
	t.Helper()

	got, err := d.NumPartitions(ctx)
	if err != nil {
		t.Fatalf("NumPartitions: %v", err)
	}
	if got != n {
		t.Fatalf("expected %d partitions, got %d", n, got)
	}
}
