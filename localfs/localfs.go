// Package localfs is the simplest concrete implementation of
// ports.FileSystem and ports.ReadStream: plain OS files on the local disk.
// It is what the engine's in-process local worker (Engine.localJobCtx in
// dataset.go) and cmd/skalectl use
// when no real multi-host transport is wired in — the RPC/byte-transfer
// layer itself stays out of the core's scope (spec.md §1).
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shankscript/skale-engine/ports"
)

// FS is an OS-backed ports.FileSystem.
type FS struct{}

// New returns a localfs.FS.
func New() *FS { return &FS{} }

func (*FS) MkdirAll(path string) error { return os.MkdirAll(path, 0o755) }

func (*FS) Create(path string) (ports.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func (*FS) Open(path string) (ports.ReadCloser, error) {
	return os.Open(path)
}

func (*FS) Stat(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (*FS) Remove(path string) error { return os.Remove(path) }

// ReadStream resolves a ports.BlobDescriptor to a local file. Host is
// ignored because every "worker" in the local demo shares the same
// filesystem; a real multi-host runtime would dial Host instead.
type ReadStream struct{}

// NewReadStream returns a localfs.ReadStream.
func NewReadStream() *ReadStream { return &ReadStream{} }

func (*ReadStream) Open(_ context.Context, d ports.BlobDescriptor) (ports.ReadCloser, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("localfs: open %s: %w", d.Path, err)
	}
	return f, nil
}
