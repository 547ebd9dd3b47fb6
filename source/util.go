package source

import (
	"bufio"
	"fmt"

	skale "github.com/shankscript/skale-engine"
	"github.com/shankscript/skale-engine/ports"
)

// lineIterator adapts a ReadCloser into a RecordIterator over its
// newline-delimited lines, closing r once the stream is exhausted.
func lineIterator(r ports.ReadCloser, onClose func() error) (skale.RecordIterator, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, scanBufSize), scanBufSize)
	closed := false
	closeAll := func() {
		if !closed {
			closed = true
			r.Close()
			_ = onClose()
		}
	}
	return func() (skale.Elem, bool, error) {
		if !sc.Scan() {
			closeAll()
			if err := sc.Err(); err != nil {
				return nil, false, fmt.Errorf("skale/source: read: %w", err)
			}
			return nil, false, nil
		}
		return sc.Text(), true, nil
	}, nil
}
