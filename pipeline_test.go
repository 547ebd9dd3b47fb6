package skale

import (
	"context"
	"sort"
	"testing"
)

func testEngine() *Engine {
	return NewEngine(NewConfig())
}

func TestMapFilterFusion(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	nums := Parallelize(eng, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 3)
	doubled := Map(nums, func(n int) int { return n * 2 })
	even := Filter(doubled, func(n int) bool { return n%4 == 0 })

	got, err := CollectTyped[int](ctx, eng, even)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	sort.Ints(got)
	want := []int{4, 8, 12, 16, 20}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestUnionDoublesCount(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	a := Parallelize(eng, []int{1, 2, 3}, 2)
	b := Parallelize(eng, []int{1, 2, 3}, 2)
	u := Union(a, b)

	n, err := Count(ctx, eng, u)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected 6 elements after union, got %d", n)
	}

	parts, err := u.NumPartitions(ctx)
	if err != nil {
		t.Fatalf("NumPartitions: %v", err)
	}
	if parts != 4 {
		t.Fatalf("expected 4 partitions (2+2), got %d", parts)
	}
}

func TestPersistedDatasetReplaysIdentically(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	calls := 0
	base := Parallelize(eng, []int{1, 2, 3, 4}, 2)
	counted := Map(base, func(n int) int {
		calls++
		return n * n
	})
	counted.Persist()

	first, err := CollectTyped[int](ctx, eng, counted)
	if err != nil {
		t.Fatalf("collect 1: %v", err)
	}
	second, err := CollectTyped[int](ctx, eng, counted)
	if err != nil {
		t.Fatalf("collect 2: %v", err)
	}

	sort.Ints(first)
	sort.Ints(second)
	if len(first) != len(second) {
		t.Fatalf("replay length mismatch: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("replay mismatch at %d: %v vs %v", i, first, second)
		}
	}
}

func TestTakeShortCircuits(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	started := 0
	d := Parallelize(eng, []int{1, 2, 3, 4, 5}, 5)
	tapped := Map(d, func(n int) int {
		started++
		return n
	})

	out, err := Take[int](ctx, eng, tapped, 2)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(out))
	}
	if started != 2 {
		t.Fatalf("expected only the first 2 of 5 partitions to run before the short-circuit, got %d", started)
	}
}

func TestReduceByKeyAssociativeAcrossPartitionCounts(t *testing.T) {
	ctx := context.Background()
	words := []string{"a", "b", "a", "c", "b", "a", "c", "c", "c"}

	run := func(srcParts, outParts int) map[string]int {
		eng := testEngine()
		d := Parallelize(eng, words, srcParts)
		pairs := Map(d, func(w string) Pair { return Pair{Key: w, Value: 1} })
		counts := ReduceByKey[string, int](pairs, func(a, b int) int { return a + b }, outParts)

		results, err := CollectTyped[Pair](ctx, eng, counts)
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		out := make(map[string]int)
		for _, p := range results {
			out[p.Key.(string)] = toInt(t, p.Value)
		}
		return out
	}

	want := map[string]int{"a": 3, "b": 2, "c": 4}
	for _, parts := range [][2]int{{1, 1}, {2, 3}, {5, 2}} {
		got := run(parts[0], parts[1])
		if len(got) != len(want) {
			t.Fatalf("partitions=%v: expected %d keys, got %d (%v)", parts, len(want), len(got), got)
		}
		for k, v := range want {
			if got[k] != v {
				t.Fatalf("partitions=%v: key %q: got %d, want %d", parts, k, got[k], v)
			}
		}
	}
}

// toInt handles both a native int (never shuffled) and a shuffled value
// that decoded through JSON as float64, per the coerceElem note in
// DESIGN.md.
func toInt(t *testing.T, v Elem) int {
	t.Helper()
	switch x := v.(type) {
	case int:
		return x
	case float64:
		return int(x)
	default:
		t.Fatalf("unexpected value type %T", v)
		return 0
	}
}

func TestGroupByKeyCollectsAllValues(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	d := Parallelize(eng, []string{"x", "y", "x", "x", "y"}, 3)
	pairs := Map(d, func(s string) Pair { return Pair{Key: s, Value: 1} })
	grouped := GroupByKey[string, int](pairs, 2)

	results, err := CollectTyped[Pair](ctx, eng, grouped)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	counts := make(map[string]int)
	for _, p := range results {
		counts[p.Key.(string)] = len(p.Value.([]int))
	}
	if counts["x"] != 3 || counts["y"] != 2 {
		t.Fatalf("unexpected group sizes: %v", counts)
	}
}

func TestDistinctRemovesDuplicates(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	d := Parallelize(eng, []int{1, 2, 2, 3, 3, 3, 1}, 3)
	uniq := Distinct(d, 2)

	n, err := Count(ctx, eng, uniq)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 distinct elements, got %d", n)
	}
}

func TestSortByKeyOrdersAcrossPartitions(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	vals := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	d := Parallelize(eng, vals, 3)
	pairs := Map(d, func(n int) Pair { return Pair{Key: n, Value: n} })

	sorted, err := SortByKey(ctx, pairs, func(a, b Elem) bool { return toInt(t, a) < toInt(t, b) }, 4)
	if err != nil {
		t.Fatalf("sortByKey: %v", err)
	}

	results, err := CollectTyped[Pair](ctx, eng, sorted)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(results) != len(vals) {
		t.Fatalf("expected %d elements, got %d", len(vals), len(results))
	}
	for i := 1; i < len(results); i++ {
		if toInt(t, results[i-1].Key) > toInt(t, results[i].Key) {
			t.Fatalf("not sorted at %d: %v", i, results)
		}
	}
}

func TestTopReturnsLastElementsInReversePartitionOrder(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	// 4 partitions of 2 contiguous elements each: [3,1] [4,1] [5,9] [2,6].
	// The last 3 elements in reverse partition order are the last
	// partition's contents reversed (6,2), then the next-to-last
	// partition's last element (9).
	d := Parallelize(eng, []int{3, 1, 4, 1, 5, 9, 2, 6}, 4)
	top, err := Top[int](ctx, eng, d, 3)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []int{6, 2, 9}
	if len(top) != len(want) {
		t.Fatalf("got %v, want %v", top, want)
	}
	for i := range want {
		if top[i] != want[i] {
			t.Fatalf("got %v, want %v", top, want)
		}
	}
}

func TestAggregateCombinesPartitionsInOrder(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	d := Parallelize(eng, []int{1, 2, 3, 4, 5}, 5)
	sum, err := Aggregate[int, int](ctx, eng, d,
		func() int { return 0 },
		func(acc, v int) int { return acc + v },
		func(a, b int) int { return a + b },
	)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if sum != 15 {
		t.Fatalf("expected 15, got %d", sum)
	}
}

func TestPartitionByRoutesConsistently(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	d := Parallelize(eng, []int{1, 2, 3, 4, 5, 6, 7, 8}, 3)
	pairs := Map(d, func(n int) Pair { return Pair{Key: n, Value: n} })
	part := NewHashPartitioner(4)
	routed := PartitionBy(pairs, func(e Elem) Elem { return e.(Pair).Key }, part)

	n, err := routed.NumPartitions(ctx)
	if err != nil {
		t.Fatalf("NumPartitions: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 output partitions, got %d", n)
	}

	results, err := CollectTyped[Pair](ctx, eng, routed)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("expected 8 elements after partitionBy, got %d", len(results))
	}
}
