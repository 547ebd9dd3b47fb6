package shuffle

import (
	"context"
	"testing"

	"github.com/shankscript/skale-engine/localfs"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := localfs.New()
	rs := localfs.NewReadStream()

	w := NewWriter(fs, "local", dir, 3, 16)
	records := []struct {
		pid int
		v   interface{}
	}{
		{0, "a"}, {1, "b"}, {0, "c"}, {2, "d"}, {1, "e"},
	}
	for _, r := range records {
		if err := w.Write(r.pid, r.v); err != nil {
			t.Fatalf("write %v: %v", r, err)
		}
	}
	descs, err := w.Close()
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(descs) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descs))
	}

	want := map[int][]string{
		0: {"a", "c"},
		1: {"b", "e"},
		2: {"d"},
	}
	for pid, d := range descs {
		if d == nil {
			t.Fatalf("partition %d: nil descriptor", pid)
		}
		if d.Size == 0 {
			t.Fatalf("partition %d: zero size", pid)
		}
		r := NewReader(rs, []*Descriptor{d})
		var got []string
		err := r.Each(ctx, func(payload interface{}) error {
			got = append(got, payload.(string))
			return nil
		})
		if err != nil {
			t.Fatalf("partition %d: read: %v", pid, err)
		}
		if len(got) != len(want[pid]) {
			t.Fatalf("partition %d: got %v, want %v", pid, got, want[pid])
		}
		for i := range got {
			if got[i] != want[pid][i] {
				t.Fatalf("partition %d: got %v, want %v", pid, got, want[pid])
			}
		}
	}
}

func TestWriterEmptyPartitionYieldsNilDescriptor(t *testing.T) {
	dir := t.TempDir()
	fs := localfs.New()

	w := NewWriter(fs, "local", dir, 2, 64*1024)
	if err := w.Write(0, "only-zero"); err != nil {
		t.Fatalf("write: %v", err)
	}
	descs, err := w.Close()
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if descs[0] == nil {
		t.Fatalf("partition 0 received a write, descriptor should not be nil")
	}
	if descs[1] != nil {
		t.Fatalf("partition 1 received no writes, descriptor should be nil, got %+v", descs[1])
	}
}

func TestReaderSkipsNilDescriptors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := localfs.New()
	rs := localfs.NewReadStream()

	w := NewWriter(fs, "local", dir, 1, 64*1024)
	if err := w.Write(0, "x"); err != nil {
		t.Fatalf("write: %v", err)
	}
	descs, err := w.Close()
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	r := NewReader(rs, []*Descriptor{nil, descs[0], nil})
	var got []string
	err = r.Each(ctx, func(payload interface{}) error {
		got = append(got, payload.(string))
		return nil
	})
	if err != nil {
		t.Fatalf("each: %v", err)
	}
	if len(got) != 1 || got[0] != "x" {
		t.Fatalf("expected [x], got %v", got)
	}
}
