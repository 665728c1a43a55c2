package driving

import "context"

// Scheduler runs the daemon's recurring tasks.
type Scheduler interface {
	// Start blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop waits for a running task to finish.
	Stop() error
}
