package skale

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func TestSplitRangeCoversEveryElementExactlyOnce(t *testing.T) {
	for _, tc := range []struct{ total, n int }{
		{10, 3}, {9, 3}, {1, 5}, {0, 4}, {7, 1},
	} {
		seen := make([]bool, tc.total)
		for idx := 0; idx < tc.n; idx++ {
			lo, hi := splitRange(tc.total, tc.n, idx)
			for i := lo; i < hi; i++ {
				if seen[i] {
					t.Fatalf("total=%d n=%d: element %d covered by more than one partition", tc.total, tc.n, i)
				}
				seen[i] = true
			}
		}
		for i, ok := range seen {
			if !ok {
				t.Fatalf("total=%d n=%d: element %d never covered", tc.total, tc.n, i)
			}
		}
	}
}

func TestRangeProducesSteppedSequence(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	d := Range(eng, 0, 10, 2, 3)
	got, err := CollectTyped[int64](ctx, eng, d)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := []int64{0, 2, 4, 6, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestGlomCollapsesEachPartitionIntoOneSlice(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	d := Parallelize(eng, []int{1, 2, 3, 4, 5, 6}, 3)
	glommed := Glom(d)

	results, err := CollectTyped[[]Elem](ctx, eng, glommed)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected one glommed slice per partition (3), got %d", len(results))
	}
	total := 0
	for _, part := range results {
		total += len(part)
	}
	if total != 6 {
		t.Fatalf("expected 6 elements total across glommed partitions, got %d", total)
	}
}

func TestSampleWithoutReplacementIsDeterministicForAFixedSeed(t *testing.T) {
	ctx := context.Background()

	run := func() []int {
		eng := testEngine()
		d := Parallelize(eng, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 2)
		sampled := Sample(d, 0.5, false, 42)
		got, err := CollectTyped[int](ctx, eng, sampled)
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		sort.Ints(got)
		return got
	}

	a := run()
	b := run()
	if len(a) != len(b) {
		t.Fatalf("same seed produced different sample sizes: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different samples: %v vs %v", a, b)
		}
	}
}

func TestMapErrAbortsOnFirstError(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	boom := errors.New("boom")
	d := Parallelize(eng, []int{1, 2, -1, 3}, 1)
	mapped := MapErr(d, func(n int) (int, error) {
		if n < 0 {
			return 0, boom
		}
		return n * 10, nil
	})

	_, err := CollectTyped[int](ctx, eng, mapped)
	if err == nil {
		t.Fatalf("expected an error from MapErr's failing element, got nil")
	}
}

func TestFlatMapValuesExpandsEachValuePreservingKey(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	d := Parallelize(eng, []Pair{{Key: "a", Value: 2}, {Key: "b", Value: 0}}, 1)
	expanded := FlatMapValues(d, func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	})

	results, err := CollectTyped[Pair](ctx, eng, expanded)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 expanded pairs from key \"a\" (value 2) and 0 from key \"b\" (value 0), got %d: %v", len(results), results)
	}
	for _, p := range results {
		if p.Key.(string) != "a" {
			t.Fatalf("expected all expanded pairs to carry key \"a\", got %v", p)
		}
	}
}
