package storage

import "errors"

// Sentinel errors for storage operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, storage.ErrObjectNotFound) {
//	    // Handle missing object
//	}
var (
	// ErrNotConnected indicates the client has not been connected.
	ErrNotConnected = errors.New("storage: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("storage: connection failed")

	// ErrBucketNotFound indicates the configured bucket does not exist.
	ErrBucketNotFound = errors.New("storage: bucket not found")

	// ErrObjectNotFound indicates the requested object does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")

	// ErrInvalidEndpoint indicates the configured endpoint could not be parsed.
	ErrInvalidEndpoint = errors.New("storage: invalid endpoint")
)
