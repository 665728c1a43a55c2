package driving

import "context"

// MaintenanceService performs store housekeeping. Both operations fail
// with *domain.ConcurrencyError while a sync holds the run lock.
type MaintenanceService interface {
	// Optimize removes interrupted downloads, compacts the store and
	// refreshes planner statistics.
	Optimize(ctx context.Context) error

	// PurgeUnresolved deletes records whose stored country no longer
	// resolves to an African country. Returns the number deleted.
	PurgeUnresolved(ctx context.Context) (int, error)
}
