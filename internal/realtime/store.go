// Package realtime provides the hierarchical key-value store capability the
// chat engine synchronizes against: append-only writes under a path and
// subscriptions that deliver the full current snapshot on every change.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
)

// Entry is one (key, record) pair of a snapshot. Keys are store-assigned
// and preserve insertion order within a path.
type Entry struct {
	Key    string          `json:"key"`
	Record json.RawMessage `json:"record"`
}

// Snapshot is the entire current content at a path, in insertion order.
// It is authoritative and complete, never a delta.
type Snapshot []Entry

// Store is the realtime store capability.
type Store interface {
	// Append adds a record under path and returns the store-assigned key.
	Append(ctx context.Context, path string, record any) (string, error)
	// Subscribe calls fn once with the current snapshot, then again with
	// the full snapshot after every append to path. fn runs on a
	// store-owned goroutine; deliveries for one subscription are in order.
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error)
}

// Subscription is a cancelable interest in a path. Cancel is idempotent.
type Subscription interface {
	Cancel()
}

// StoreError carries the store's message for a failed append or subscribe.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeError(op, path string, err error) *StoreError {
	return &StoreError{Op: op, Path: path, Err: err}
}
