package climate

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned when startup configuration is missing or invalid.
	ErrConfig = errors.New("configuration error")
	// ErrConnect is returned when the store cannot be reached at startup.
	ErrConnect = errors.New("storage connect error")
	// ErrDuplicateBucket is returned by CreateBucket when a bucket with the
	// same device and interval start already exists.
	ErrDuplicateBucket = errors.New("bucket already exists")
)

// SensorError is a failed hardware read. The collector skips the tick.
type SensorError struct {
	Sensor string
	Err    error
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("sensor %s: %v", e.Sensor, e.Err)
}

func (e *SensorError) Unwrap() error { return e.Err }

// StorageError is a failed query or write against the bucket store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
