package skale

import (
	"context"
	"testing"
)

func TestHashPartitionerDeterministic(t *testing.T) {
	p1 := NewHashPartitioner(8)
	p2 := NewHashPartitioner(8)

	keys := []Elem{"alpha", "beta", 42, 3.14, true, nil, []int{1, 2, 3}}
	for _, k := range keys {
		a := p1.PartitionIndexOf(k)
		b := p2.PartitionIndexOf(k)
		if a != b {
			t.Fatalf("key %v: got different indexes from two partitioners with identical config: %d vs %d", k, a, b)
		}
		if a < 0 || a >= 8 {
			t.Fatalf("key %v: index %d out of range [0,8)", k, a)
		}
	}
}

func TestHashPartitionerMinimumOnePartition(t *testing.T) {
	p := NewHashPartitioner(0)
	if p.NumPartitions() != 1 {
		t.Fatalf("expected a non-positive n to clamp to 1, got %d", p.NumPartitions())
	}
}

func TestRangePartitionerOrdersBuckets(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()

	vals := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		vals = append(vals, i)
	}
	d := Parallelize(eng, vals, 4)

	rp, err := NewRangePartitioner(ctx, eng, d, 5, func(e Elem) Elem { return e }, func(a, b Elem) bool {
		return a.(int) < b.(int)
	})
	if err != nil {
		t.Fatalf("NewRangePartitioner: %v", err)
	}
	if rp.NumPartitions() != 5 {
		t.Fatalf("expected 5 partitions, got %d", rp.NumPartitions())
	}

	// Every key routed to bucket i must be less than every key routed to
	// bucket i+1, which holds iff PartitionIndexOf is monotonic in the key
	// for sorted input.
	lastBucket := -1
	for i := 0; i < 100; i++ {
		b := rp.PartitionIndexOf(i)
		if b < lastBucket {
			t.Fatalf("bucket assignment not monotonic: key %d got bucket %d after bucket %d", i, b, lastBucket)
		}
		lastBucket = b
	}
}

func TestRangePartitionerSinglePartitionIsTrivial(t *testing.T) {
	ctx := context.Background()
	eng := testEngine()
	d := Parallelize(eng, []int{1, 2, 3}, 1)

	rp, err := NewRangePartitioner(ctx, eng, d, 1, func(e Elem) Elem { return e }, func(a, b Elem) bool {
		return a.(int) < b.(int)
	})
	if err != nil {
		t.Fatalf("NewRangePartitioner: %v", err)
	}
	for _, k := range []int{1, 2, 3} {
		if rp.PartitionIndexOf(k) != 0 {
			t.Fatalf("single-partition range partitioner routed %d to %d, want 0", k, rp.PartitionIndexOf(k))
		}
	}
}
