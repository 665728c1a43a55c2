package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyKeep is the number of results retained per task.
const historyKeep = 100

// Scheduler runs the daily incremental update and periodic store
// optimisation. Task state survives restarts through the SchedulerStore.
type Scheduler struct {
	config      domain.SchedulerConfig
	store       driven.SchedulerStore
	sync        driving.SyncService
	maintenance driving.MaintenanceService

	tick time.Duration
	now  func() time.Time

	mu      sync.Mutex
	running bool
	busy    bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
// maintenance may be nil, which disables the optimisation task.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	syncService driving.SyncService,
	maintenance driving.MaintenanceService,
) *Scheduler {
	return &Scheduler{
		config:      config,
		store:       store,
		sync:        syncService,
		maintenance: maintenance,
		tick:        time.Minute,
		now:         time.Now,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Error("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler and waits for a running task.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures configured tasks exist in the store and
// disables the ones no longer configured.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, id := range domain.BuiltinTaskIDs() {
		cfg := s.config.GetTaskConfig(id)
		if !s.config.Enabled {
			cfg.Enabled = false
		}
		if id == domain.TaskIDOptimize && s.maintenance == nil {
			cfg.Enabled = false
		}
		if err := s.ensureTask(ctx, id, domain.TaskName(id), cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if task == nil {
		// A new incremental task runs straight away; optimisation waits a full interval.
		next := now.Add(cfg.Interval)
		if id == domain.TaskIDIncrementalUpdate {
			next = now
		}
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  next,
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = now.Add(cfg.Interval)
		}
		task.Name = name
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks runs due tasks one after another in the background.
// A cycle is skipped while the previous one is still running.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	var due []domain.ScheduledTask
	for i := range tasks {
		if tasks[i].Due(now) {
			due = append(due, tasks[i])
		}
	}
	if len(due) == 0 {
		return
	}

	s.mu.Lock()
	s.busy = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		}()
		for i := range due {
			if ctx.Err() != nil {
				return
			}
			s.runTask(ctx, &due[i])
		}
	}()
}

// runTask executes a single task and records the outcome.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
	}

	var err error
	switch task.ID {
	case domain.TaskIDIncrementalUpdate:
		result.ItemsProcessed, err = s.runIncremental(ctx)
	case domain.TaskIDOptimize:
		err = s.runOptimize(ctx)
	default:
		logger.Warn("scheduler: unknown task ID: %s", task.ID)
		return
	}

	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		logger.Error("scheduler: %s failed: %v", task.Name, err)
	} else {
		result.Success = true
		logger.Info("scheduler: %s finished in %s", task.Name, result.Duration().Round(time.Second))
	}
	task.Complete(result)

	// Bookkeeping must survive a cancelled run context.
	bg := context.WithoutCancel(ctx)
	if saveErr := s.store.SaveTask(bg, task); saveErr != nil {
		logger.Error("scheduler: failed to save task %s: %v", task.ID, saveErr)
	}
	if recordErr := s.store.RecordResult(bg, result); recordErr != nil {
		logger.Error("scheduler: failed to record result for %s: %v", task.ID, recordErr)
	}
	if pruneErr := s.store.PruneHistory(bg, historyKeep); pruneErr != nil {
		logger.Error("scheduler: failed to prune history: %v", pruneErr)
	}
}

// runIncremental runs one incremental update and returns the records merged.
func (s *Scheduler) runIncremental(ctx context.Context) (int, error) {
	if s.sync == nil {
		return 0, nil
	}
	report, err := s.sync.Incremental(ctx, domain.IncrementalOptions{})
	if report == nil {
		return 0, err
	}
	return report.Inserted + report.Updated, err
}

func (s *Scheduler) runOptimize(ctx context.Context) error {
	if s.maintenance == nil {
		return nil
	}
	return s.maintenance.Optimize(ctx)
}
