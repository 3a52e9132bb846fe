package bucket

import "errors"

var (
	// ErrBucketNotFound is returned by any operation against a bucket
	// name that has not been created.
	ErrBucketNotFound = errors.New("bucket: not found")
	// ErrBucketAlreadyExists is returned by Create for a name already
	// registered.
	ErrBucketAlreadyExists = errors.New("bucket: already exists")
	// ErrInvalidBucketName is returned for empty names or names longer
	// than MaxNameLen.
	ErrInvalidBucketName = errors.New("bucket: invalid name")
	// ErrBucketNotEmpty is returned by Delete for a non-empty bucket
	// when cascade is false.
	ErrBucketNotEmpty = errors.New("bucket: not empty")
)
