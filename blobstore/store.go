package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for durable storage of immutable data blobs,
// such as pool checkpoints. Blobs are written once via Create or Put and
// read back via Open; there is no partial update.
type Store interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create starts a streaming write of a new blob. The blob becomes
	// visible to readers only once the returned handle is closed
	// without error.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a small blob in one shot.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix,
	// sorted lexicographically.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at offset off. It returns
	// io.EOF when fewer bytes than requested remain.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	io.Closer
}

// WritableBlob is a write-only handle to a blob under construction.
type WritableBlob interface {
	io.Writer

	// Sync flushes buffered data to durable storage where the backend
	// supports it. Object stores that commit on Close treat this as a
	// no-op.
	Sync() error

	// Abort discards the blob without publishing it. Any previously
	// stored blob of the same name is left untouched. Abort after Close
	// or a second Abort is a no-op.
	Abort() error

	// Close finalizes the blob. The write is atomic: either the full
	// blob becomes visible or, on error, nothing does. After a failed
	// Write or Sync, Close discards the blob and reports that failure.
	io.Closer
}

// Mappable is an optional interface for Blobs backed by memory-mapped
// files.
type Mappable interface {
	// Bytes returns the underlying byte slice without copying. The
	// slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}
