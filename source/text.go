// Package source provides SourceOperator implementations beyond the
// in-memory Parallelize/Range sources in the core: line-delimited text
// files, gzip-compressed text, columnar (parquet) files, and object-store
// bucket listings (spec §4.3, §4.7).
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"

	skale "github.com/shankscript/skale-engine"
	"github.com/shankscript/skale-engine/ports"
)

const scanBufSize = 1 << 20

// Text is a SourceOperator over a newline-delimited file, split into N
// byte-range partitions (spec §4.7). Partition boundaries are snapped
// forward to the next newline so no partition starts mid-record; the first
// partition always starts at offset 0 and the last always ends at EOF.
type Text struct {
	FS   ports.FileSystem
	Path string
	N    int
	Host string
}

func (t *Text) Name() string { return "text:" + t.Path }

// GetPartitions stats the file once, then makes one sequential scanning
// pass to find newline-aligned boundaries near each target offset — there
// is no Seek on ports.ReadCloser, so boundary discovery and partition
// reading are two independent sequential passes rather than one seek-based
// pass.
func (t *Text) GetPartitions(ctx context.Context) ([]*skale.Partition, error) {
	n := t.N
	if n < 1 {
		n = 1
	}
	size, err := t.FS.Stat(t.Path)
	if err != nil {
		return nil, fmt.Errorf("skale/source: text: stat %s: %w", t.Path, err)
	}
	if size == 0 {
		n = 1
	}

	bounds, err := t.findBoundaries(size, n)
	if err != nil {
		return nil, err
	}

	parts := make([]*skale.Partition, len(bounds)-1)
	for i := range parts {
		parts[i] = &skale.Partition{
			Index:             i,
			ParentIndex:       -1,
			PreferredLocation: t.Host,
			Path:              t.Path,
			RangeStart:        bounds[i],
			RangeEnd:          bounds[i+1],
		}
	}
	return parts, nil
}

// findBoundaries scans the file once, tracking the current byte offset,
// and records the offset just past the first newline at or after each of
// the n-1 interior target offsets.
func (t *Text) findBoundaries(size int64, n int) ([]int64, error) {
	bounds := make([]int64, 0, n+1)
	bounds = append(bounds, 0)
	if n <= 1 {
		return append(bounds, size), nil
	}

	f, err := t.FS.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("skale/source: text: open %s: %w", t.Path, err)
	}
	defer f.Close()

	targets := make([]int64, n-1)
	step := size / int64(n)
	for i := range targets {
		targets[i] = step * int64(i+1)
	}

	r := bufio.NewReaderSize(f, scanBufSize)
	var offset int64
	nextTarget := 0
	for nextTarget < len(targets) {
		line, err := r.ReadBytes('\n')
		offset += int64(len(line))
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("skale/source: text: scan %s: %w", t.Path, err)
		}
		for nextTarget < len(targets) && offset >= targets[nextTarget] {
			bounds = append(bounds, offset)
			nextTarget++
		}
		if err == io.EOF {
			break
		}
	}
	for len(bounds) < n {
		bounds = append(bounds, size)
	}
	return append(bounds, size), nil
}

// Open skips to p.RangeStart and scans newline-delimited records up to
// p.RangeEnd.
func (t *Text) Open(ctx context.Context, p *skale.Partition) (skale.RecordIterator, error) {
	f, err := t.FS.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("skale/source: text: open %s: %w", t.Path, err)
	}
	if p.RangeStart > 0 {
		if _, err := io.CopyN(io.Discard, f, p.RangeStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("skale/source: text: seek %s: %w", t.Path, err)
		}
	}

	lr := io.LimitReader(f, p.RangeEnd-p.RangeStart)
	sc := bufio.NewScanner(lr)
	sc.Buffer(make([]byte, scanBufSize), scanBufSize)

	closed := false
	return func() (skale.Elem, bool, error) {
		if !sc.Scan() {
			if !closed {
				closed = true
				f.Close()
			}
			if err := sc.Err(); err != nil {
				return nil, false, fmt.Errorf("skale/source: text: read %s: %w", t.Path, err)
			}
			return nil, false, nil
		}
		line := sc.Text()
		return line, true, nil
	}, nil
}
