package skale

import "testing"

func TestMemoryManagerReserveRelease(t *testing.T) {
	mm := NewMemoryManager(100)

	if mm.Reserve(50) {
		t.Fatalf("reserving 50 of 100 should not trip the ceiling")
	}
	if mm.Used() != 50 {
		t.Fatalf("expected 50 used, got %d", mm.Used())
	}
	if !mm.Reserve(60) {
		t.Fatalf("reserving another 60 (110 total) should trip the ceiling")
	}

	mm.Release(50)
	if mm.Used() < 0 {
		t.Fatalf("used went negative after release: %d", mm.Used())
	}
}

func TestMemoryManagerZeroCeilingIsUnbounded(t *testing.T) {
	mm := NewMemoryManager(0)
	if mm.Reserve(1 << 40) {
		t.Fatalf("a zero ceiling means unbounded, so Reserve should never report over-ceiling")
	}
}
