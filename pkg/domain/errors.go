package domain

import "fmt"

// CorruptStateError is returned by durable stores when a persisted bucket
// cannot be decoded. Callers get the bucket name and the underlying cause
// rather than a silently empty dataset.
type CorruptStateError struct {
	Bucket string
	Err    error
}

func (e CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state in bucket %q: %v", e.Bucket, e.Err)
}

// Unwrap exposes the decoding error.
func (e CorruptStateError) Unwrap() error { return e.Err }
