// Package blobstore abstracts durable storage for immutable blobs such
// as pool checkpoints. A Store writes whole blobs atomically and reads
// them back by name; backends exist for memory (testing), the local file
// system (memory-mapped reads, temp-and-rename writes) and, in
// subpackages, S3-compatible object stores.
package blobstore
