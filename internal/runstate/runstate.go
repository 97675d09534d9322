// Package runstate implements the Run State Store (component K): tracking
// active runs for cancellation and status queries. Store is an interface so
// callers can swap the default in-memory backend for a durable one; see
// memstore.go and pgstore.go.
package runstate

import "context"

// Status is a run's lifecycle state as tracked by the store. It does not
// carry results — those live in the executor's PipelineExecutionResult.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusDone      Status = "done"
)

// Store is the interface spec section 4.K specifies.
type Store interface {
	MarkActive(ctx context.Context, runID string) error
	MarkCancelled(ctx context.Context, runID string) error
	IsCancelled(ctx context.Context, runID string) (bool, error)
	Unregister(ctx context.Context, runID string) error
}
