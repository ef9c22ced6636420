package lifecycle

import "context"

// Component defines the lifecycle interface that all managed components must
// implement. The manager uses it to orchestrate startup and shutdown in
// dependency order.
type Component interface {
	// Start initializes and starts the component.
	// Must be idempotent. Returns an error if initialization fails.
	Start(ctx context.Context) error

	// Stop gracefully stops the component, completing in-flight work within
	// the context deadline. Errors are logged but do not prevent other
	// components from stopping.
	Stop(ctx context.Context) error

	// Name returns the human-readable component name used in logs and
	// dependency declarations. Must be non-empty.
	Name() string
}
