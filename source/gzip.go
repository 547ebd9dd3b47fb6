package source

import (
	"bufio"
	"fmt"

	"github.com/klauspost/compress/gzip"

	skale "github.com/shankscript/skale-engine"
	"context"

	"github.com/shankscript/skale-engine/ports"
)

// Gzip is a SourceOperator over a gzip-compressed, newline-delimited file.
// Unlike Text, it is always a single partition: a gzip stream has no
// byte-range-addressable interior, so there is nothing to split on without
// decompressing the whole file up front (spec §4.7 "gzip source ... single
// partition").
type Gzip struct {
	FS   ports.FileSystem
	Path string
	Host string
}

func (g *Gzip) Name() string { return "gzip:" + g.Path }

func (g *Gzip) GetPartitions(ctx context.Context) ([]*skale.Partition, error) {
	return []*skale.Partition{{
		Index:             0,
		ParentIndex:       -1,
		PreferredLocation: g.Host,
		Path:              g.Path,
	}}, nil
}

func (g *Gzip) Open(ctx context.Context, p *skale.Partition) (skale.RecordIterator, error) {
	f, err := g.FS.Open(g.Path)
	if err != nil {
		return nil, fmt.Errorf("skale/source: gzip: open %s: %w", g.Path, err)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("skale/source: gzip: %s: %w", g.Path, err)
	}

	sc := bufio.NewScanner(zr)
	sc.Buffer(make([]byte, scanBufSize), scanBufSize)
	closed := false
	closeAll := func() {
		if !closed {
			closed = true
			zr.Close()
			f.Close()
		}
	}
	return func() (skale.Elem, bool, error) {
		if !sc.Scan() {
			closeAll()
			if err := sc.Err(); err != nil {
				return nil, false, fmt.Errorf("skale/source: gzip: read %s: %w", g.Path, err)
			}
			return nil, false, nil
		}
		return sc.Text(), true, nil
	}, nil
}
