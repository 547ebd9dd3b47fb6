package source

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/shankscript/skale-engine/ports"
)

// memFS is a minimal in-memory ports.FileSystem for source tests — real
// disk I/O isn't needed to exercise the byte-range split/scan logic.
type memFS struct {
	files map[string][]byte
}

func newMemFS(files map[string][]byte) *memFS { return &memFS{files: files} }

func (m *memFS) MkdirAll(string) error { return nil }

func (m *memFS) Create(string) (ports.WriteCloser, error) { panic("not used in these tests") }

func (m *memFS) Open(path string) (ports.ReadCloser, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memFS) Stat(path string) (int64, error) {
	data, ok := m.files[path]
	if !ok {
		return 0, io.ErrUnexpectedEOF
	}
	return int64(len(data)), nil
}

func (m *memFS) Remove(string) error { return nil }

func TestTextSourceSplitsAllLinesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	content := []byte("one\ntwo\nthree\nfour\nfive\nsix\nseven\neight\n")
	fs := newMemFS(map[string][]byte{"words.txt": content})

	src := &Text{FS: fs, Path: "words.txt", N: 3}
	parts, err := src.GetPartitions(ctx)
	if err != nil {
		t.Fatalf("GetPartitions: %v", err)
	}

	var all []string
	for _, p := range parts {
		it, err := src.Open(ctx, p)
		if err != nil {
			t.Fatalf("Open partition %d: %v", p.Index, err)
		}
		for {
			e, ok, err := it()
			if err != nil {
				t.Fatalf("partition %d: %v", p.Index, err)
			}
			if !ok {
				break
			}
			all = append(all, e.(string))
		}
	}

	want := []string{"one", "two", "three", "four", "five", "six", "seven", "eight"}
	if len(all) != len(want) {
		t.Fatalf("expected %d lines total across partitions, got %d: %v", len(want), len(all), all)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q (full: %v)", i, all[i], want[i], all)
		}
	}
}

func TestTextSourceSinglePartitionForEmptyFile(t *testing.T) {
	ctx := context.Background()
	fs := newMemFS(map[string][]byte{"empty.txt": {}})

	src := &Text{FS: fs, Path: "empty.txt", N: 4}
	parts, err := src.GetPartitions(ctx)
	if err != nil {
		t.Fatalf("GetPartitions: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("expected 1 partition for an empty file, got %d", len(parts))
	}
}

func TestGzipSourceSinglePartition(t *testing.T) {
	ctx := context.Background()
	fs := newMemFS(map[string][]byte{"log.gz": gzipBytes(t, "a\nb\nc\n")})

	src := &Gzip{FS: fs, Path: "log.gz"}
	parts, err := src.GetPartitions(ctx)
	if err != nil {
		t.Fatalf("GetPartitions: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("expected exactly 1 partition for a gzip source, got %d", len(parts))
	}

	it, err := src.Open(ctx, parts[0])
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var got []string
	for {
		e, ok, err := it()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, e.(string))
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
