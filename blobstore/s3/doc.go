// Package s3 implements blobstore.Store on Amazon S3, with an optional
// DynamoDB-backed commit log that gives checkpoint pointer updates the
// compare-and-swap semantics S3 lacks.
package s3
