package domain

import (
	"context"
	"time"
)

// Adapter wraps one vendor backend for one capability. Call performs exactly
// one network round trip (or one bounded polling loop for job-queue
// providers) and maps the vendor's success/error shape into the shared
// AttemptResult vocabulary. Adapters never retry internally; retry and
// backoff belong to the orchestrator.
type Adapter interface {
	// Call issues a single attempt against the backend.
	Call(ctx context.Context, req *Request) *AttemptResult

	// Name returns the provider identifier.
	Name() string

	// Capability returns the class of request this adapter serves.
	Capability() Capability
}

// AdapterRegistry manages available adapters.
type AdapterRegistry interface {
	// Register adds an adapter to the registry.
	Register(ctx context.Context, adapter Adapter) error

	// Get retrieves an adapter by capability and name.
	Get(ctx context.Context, capability Capability, name string) (Adapter, error)

	// List returns the names of all adapters registered for a capability.
	List(ctx context.Context, capability Capability) []string
}

// ResponseCache memoizes artifacts for identical requests within a TTL
// window. Misses never block correctness, only cost and latency.
type ResponseCache interface {
	// Get returns the cached value for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL, overwriting any
	// prior entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete evicts the entry for key, if any.
	Delete(ctx context.Context, key string) error
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}
