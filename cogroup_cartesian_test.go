package skale

import (
	"context"
	"sort"
	"strconv"
	"testing"
)

func itoa(n int) string { return strconv.Itoa(n) }

func TestCoGroupJoinsBothSides(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	left := Parallelize(eng, []int{1, 2, 3}, 2)
	leftPairs := Map(left, func(n int) Pair { return Pair{Key: n, Value: "L" + string(rune('0'+n))} })

	right := Parallelize(eng, []int{2, 3, 4}, 2)
	rightPairs := Map(right, func(n int) Pair { return Pair{Key: n, Value: "R" + string(rune('0'+n))} })

	grouped := CoGroup(leftPairs, rightPairs, 3)
	results, err := CollectTyped[Pair](ctx, eng, grouped)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 distinct keys (1,2,3,4), got %d: %v", len(results), results)
	}

	counts := make(map[int][2]int)
	for _, p := range results {
		k := toInt(t, p.Key)
		sides := p.Value.([2][]Elem)
		counts[k] = [2]int{len(sides[0]), len(sides[1])}
	}
	want := map[int][2]int{1: {1, 0}, 2: {1, 1}, 3: {1, 1}, 4: {0, 1}}
	for k, w := range want {
		if counts[k] != w {
			t.Fatalf("key %d: got %v, want %v (full: %v)", k, counts[k], w, counts)
		}
	}
}

func TestCartesianProducesFullCrossProduct(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	a := Parallelize(eng, []int{1, 2}, 2)
	b := Parallelize(eng, []string{"x", "y", "z"}, 3)

	prod := Cartesian(a, b)
	results, err := CollectTyped[Pair](ctx, eng, prod)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected 2*3=6 pairs, got %d: %v", len(results), results)
	}

	var seen []string
	for _, p := range results {
		seen = append(seen, itoa(toInt(t, p.Key))+toStr(t, p.Value))
	}
	sort.Strings(seen)
	want := []string{"1x", "1y", "1z", "2x", "2y", "2z"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("got %v, want %v", seen, want)
		}
	}
}

func toStr(t *testing.T, v Elem) string {
	t.Helper()
	s, ok := v.(string)
	if !ok {
		t.Fatalf("expected string, got %T (%v)", v, v)
	}
	return s
}
