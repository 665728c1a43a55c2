package driven

// RunLock guards against concurrent sync and maintenance runs across
// processes sharing a data directory.
type RunLock interface {
	// TryLock acquires the lock without blocking. If another holder has it,
	// it returns a *domain.ConcurrencyError.
	TryLock() (unlock func() error, err error)
}
