package canon

import "testing"

func TestKeyDistinguishesIntFromFloat(t *testing.T) {
	if Key(3) == Key(3.0) {
		t.Fatalf("int 3 and float64 3.0 must encode differently, got %q for both", Key(3))
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	v := map[string]int{"b": 2, "a": 1, "c": 3}
	a := Key(v)
	b := Key(v)
	if a != b {
		t.Fatalf("Key must be deterministic for the same value: %q vs %q", a, b)
	}
}

func TestKeyMapOrderIndependentOfInsertion(t *testing.T) {
	m1 := map[string]int{"a": 1, "b": 2}
	m2 := map[string]int{"b": 2, "a": 1}
	if Key(m1) != Key(m2) {
		t.Fatalf("maps with the same entries must encode identically regardless of Go's randomized iteration order: %q vs %q", Key(m1), Key(m2))
	}
}

func TestKeyStringsNoDelimiterCollision(t *testing.T) {
	a := Key([]string{"ab", "c"})
	b := Key([]string{"a", "bc"})
	if a == b {
		t.Fatalf("length-prefixed strings must not collide across element boundaries: both encoded as %q", a)
	}
}

func TestKeyDistinguishesNilFromZeroValue(t *testing.T) {
	if Key(nil) == Key(0) {
		t.Fatalf("nil and int 0 must not share a canonical key")
	}
}
