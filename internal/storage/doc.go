// Package storage defines the persistence interfaces for the platform
// journal and its queryable index.
//
// The event journal is append-only; every state mutation is recorded as an
// event and current state is a replayable projection. Implementations live
// in subpackages: sqlite for durable storage and memory for tests.
//
// # Error Types
//
// The package defines common error types used across implementations:
//   - ErrNotFound: a requested record is missing.
//   - ErrDuplicateKey: a live platform already claims the natural key.
package storage
