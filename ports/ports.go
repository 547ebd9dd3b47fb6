// Package ports defines the typed boundary between the skale core and the
// surrounding runtime: cluster membership, RPC transport, on-disk block
// transfer, and cloud/object-storage bindings are out of scope for the core
// (spec.md §1) and are reached only through these interfaces.
package ports

import "context"

// Worker identifies one execution endpoint the driver can dispatch tasks
// to. The core never dials a worker itself; it only carries this handle
// through to Dispatcher.
type Worker struct {
	ID       string
	Host     string
	Capacity int
}

// TaskResult is what a worker reports back for one dispatched task.
type TaskResult struct {
	Err   error
	Value interface{}
}

// Dispatcher runs one task on a worker and reports the outcome
// asynchronously. The concrete implementation owns the RPC transport; the
// core only ever sees this interface (spec §6 "runTask(task, callback)").
type Dispatcher interface {
	RunTask(ctx context.Context, w Worker, task interface{}) (<-chan TaskResult, error)
	Workers() []Worker
}

// BlobDescriptor identifies a shuffle file or exported partition file
// produced by one worker: host, path and size, exactly as spec §4.6/§9
// specify (the core stores .Size, never a raw stat object — see DESIGN.md
// "PartitionBy.spillToDisk stat-object bug").
type BlobDescriptor struct {
	Host string
	Path string
	Size int64
}

// ReadStream obtains a byte stream for a shuffle or export file that may
// live on a different worker than the one asking for it. This is the
// runtime-supplied `getReadStream` port from spec §6.
type ReadStream interface {
	Open(ctx context.Context, d BlobDescriptor) (ReadCloser, error)
}

// ReadCloser is the minimal byte-stream contract ReadStream returns.
type ReadCloser interface {
	Read(p []byte) (n int, err error)
	Close() error
}

// FileSystem is the worker-local facade the core calls through for scratch
// files, export files, and directory creation (spec §6 `lib.{fs,mkdirp}`).
type FileSystem interface {
	MkdirAll(path string) error
	Create(path string) (WriteCloser, error)
	Open(path string) (ReadCloser, error)
	Stat(path string) (size int64, err error)
	Remove(path string) error
}

// WriteCloser is the minimal byte-sink contract FileSystem.Create returns.
type WriteCloser interface {
	Write(p []byte) (n int, err error)
	Close() error
}

// BlobStore is the cloud object-storage facade used by bucket-listing
// sources (spec §6 `lib.{AWS,azure}`). Nothing in the core parses s3:// or
// azblob:// URIs, and `save` writes through a FileSystem, not a BlobStore.
type BlobStore interface {
	// List enumerates object keys under prefix, honoring glob and maxFiles
	// the way a directory/bucket listing source requires (spec §4.3).
	List(ctx context.Context, bucket, prefix, glob string, maxFiles int) ([]string, error)
	Open(ctx context.Context, bucket, key string) (ReadCloser, error)
	Create(ctx context.Context, bucket, key string) (WriteCloser, error)
}
